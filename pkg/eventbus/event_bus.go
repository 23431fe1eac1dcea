// Package eventbus provides event-driven communication infrastructure for switch lifecycle events.
package eventbus

import (
	"context"

	"github.com/dukex/flowroute/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, Event) error {
	return nil
}

// NoopPublisher discards every event.
//
// nolint:ireturn
func NoopPublisher() EventPublisher {
	return noopPublisher{}
}
