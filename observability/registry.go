package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer names accepted by the workspace "observer" setting.
const (
	ObserverNoop    = "noop"
	ObserverSlog    = "slog"
	ObserverMetrics = "metrics"
)

// ErrUnknownObserver is returned when no observer is registered under a name.
var ErrUnknownObserver = errors.New("unknown observer")

var (
	observers = map[string]Observer{
		ObserverNoop: NoOpObserver{},
		ObserverSlog: NewSlogObserver(slog.Default()),
	}
	mutex sync.RWMutex
)

// GetObserver returns a registered observer by name. "noop" and "slog" are
// always available; "metrics" exists once RegisterMetrics has run.
func GetObserver(name string) (Observer, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	obs, exists := observers[name]
	if !exists {
		names := slices.Sorted(maps.Keys(observers))
		return nil, fmt.Errorf("%w: %s (registered: %s)", ErrUnknownObserver, name, strings.Join(names, ", "))
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}

// UseLogger points the "slog" observer at logger.
func UseLogger(logger *slog.Logger) {
	RegisterObserver(ObserverSlog, NewSlogObserver(logger))
}

// RegisterMetrics registers the workbench counters with reg and makes the
// "metrics" observer available. That observer logs every event to logger
// and counts it.
func RegisterMetrics(reg prometheus.Registerer, logger *slog.Logger) (*MetricsObserver, error) {
	metrics, err := NewMetricsObserver(reg)
	if err != nil {
		return nil, fmt.Errorf("register workbench metrics: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	RegisterObserver(ObserverMetrics, NewMultiObserver(NewSlogObserver(logger), metrics))
	return metrics, nil
}
