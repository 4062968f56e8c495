package interfaces

import (
	"context"

	"github.com/secmon-lab/examchat/pkg/domain/event"
)

type EventHandler func(ctx context.Context, ev event.Event)

// EventBus routes events to the handlers subscribed to their name.
type EventBus interface {
	Publish(ctx context.Context, ev event.Event)
	Subscribe(name event.Name, handler EventHandler) (unsubscribe func())
}

// Outbox runs durability operations in the background, in enqueue order.
// Flush waits until every operation enqueued so far has settled.
type Outbox interface {
	Enqueue(ctx context.Context, name string, op func(ctx context.Context) error) error
	Flush(ctx context.Context) error
}
