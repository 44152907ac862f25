package bus

import (
	"log/slog"
	"sync"

	"github.com/lh-manager/workbench/core/labware"
)

// TopicWellPicked is the name of the fixed well-picking topic.
const TopicWellPicked = "well_picked"

type closer interface {
	close()
}

// Bus groups the topics shared by workbench components.
type Bus struct {
	// WellPicked carries picks made in the rack view.
	WellPicked *Topic[labware.WellLocation]

	name       string
	bufferSize int
	logger     *slog.Logger
	metrics    *Metrics

	custom   map[string]*Topic[any]
	customMu sync.Mutex

	topics []closer
	mu     sync.Mutex
}

func New(cfg Config) *Bus {
	defaults := DefaultConfig()
	defaults.Merge(&cfg)

	b := &Bus{
		name:       defaults.Name,
		bufferSize: defaults.ChannelBufferSize,
		logger:     defaults.Logger.With(slog.String("bus", defaults.Name)),
		metrics:    NewMetrics(),
		custom:     make(map[string]*Topic[any]),
	}
	b.WellPicked = NewTopic[labware.WellLocation](b, TopicWellPicked)

	return b
}

// Custom returns the UI-defined topic called name, creating it on first use.
// Custom topics never alias WellPicked, even when named "well_picked".
func (b *Bus) Custom(name string) *Topic[any] {
	b.customMu.Lock()
	defer b.customMu.Unlock()

	if topic, exists := b.custom[name]; exists {
		return topic
	}
	topic := NewTopic[any](b, name)
	b.custom[name] = topic
	return topic
}

func (b *Bus) Metrics() MetricsSnapshot {
	return b.metrics.Snapshot()
}

// Close closes every subscription on every topic.
func (b *Bus) Close() {
	b.mu.Lock()
	topics := b.topics
	b.topics = nil
	b.mu.Unlock()

	for _, t := range topics {
		t.close()
	}
	b.logger.Debug("bus closed")
}

func (b *Bus) track(t closer) {
	b.mu.Lock()
	b.topics = append(b.topics, t)
	b.mu.Unlock()
}
