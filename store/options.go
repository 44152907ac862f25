package store

import (
	"log/slog"

	"github.com/lh-manager/workbench/bus"
	"github.com/lh-manager/workbench/methods"
	"github.com/lh-manager/workbench/observability"
)

// Option configures a Store.
type Option func(*Store)

// WithBus publishes revisions on a topic of b.
func WithBus(b *bus.Bus) Option {
	return func(s *Store) {
		s.revisions = bus.NewTopic[Revision](b, TopicRevision)
	}
}

// WithRegistry shares an existing method registry.
func WithRegistry(r *methods.Registry) Option {
	return func(s *Store) {
		s.registry = r
	}
}

func WithObserver(o observability.Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}
