package bus

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a published value with routing metadata.
type Envelope[T any] struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	From      string    `json:"from"`
	Data      T         `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func newEnvelope[T any](topic, from string, data T) Envelope[T] {
	return Envelope[T]{
		ID:        generateID(),
		Topic:     topic,
		From:      from,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func (e Envelope[T]) String() string {
	return fmt.Sprintf("Envelope{ID: %s, Topic: %s, From: %s}", e.ID, e.Topic, e.From)
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
