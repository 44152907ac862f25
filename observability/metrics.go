package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "workbench"

// MetricsObserver counts events by type and severity. Warnings and errors are
// additionally counted per source so that failing subsystems stand out.
type MetricsObserver struct {
	events   *prometheus.CounterVec
	problems *prometheus.CounterVec
}

// NewMetricsObserver registers its collectors with reg. A nil reg uses the
// Prometheus default registerer.
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &MetricsObserver{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Workbench events by type and severity.",
		}, []string{"type", "level"}),
		problems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "problems_total",
			Help:      "Warning and error events by emitting source.",
		}, []string{"source"}),
	}

	for _, c := range []prometheus.Collector{m.events, m.problems} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MetricsObserver) OnEvent(ctx context.Context, event Event) {
	m.events.WithLabelValues(string(event.Type), event.Level.String()).Inc()
	if event.Level >= LevelWarning {
		m.problems.WithLabelValues(event.Source).Inc()
	}
}
