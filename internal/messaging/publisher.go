package messaging

import (
	"context"
	"time"

	"github.com/dpup/prefab/logging"
)

// Publisher sends domain events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
	Close() error
}

// LogPublisher logs events instead of sending them, used when no broker is configured
type LogPublisher struct{}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (LogPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	event, err := NewEvent(eventType, payload, time.Now())
	if err != nil {
		return err
	}
	logging.Infow(ctx, "Event published", "event.type", event.Type, "event.id", event.ID, "event.data", string(event.Data))
	return nil
}

func (LogPublisher) Close() error { return nil }
