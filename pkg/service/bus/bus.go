package bus

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/event"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

type subscription struct {
	id      uint64
	handler interfaces.EventHandler
}

// Bus is an in-process event bus. Publish calls every handler subscribed to the
// event's name synchronously, in subscription order. A panicking handler is
// reported and does not stop delivery to the others.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[event.Name][]subscription
}

var _ interfaces.EventBus = &Bus{}

func New() *Bus {
	return &Bus{
		subs: make(map[event.Name][]subscription),
	}
}

// Subscribe registers handler for name. The returned function removes it and
// is safe to call more than once.
func (x *Bus) Subscribe(name event.Name, handler interfaces.EventHandler) func() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.nextID++
	id := x.nextID
	x.subs[name] = append(x.subs[name], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { x.unsubscribe(name, id) })
	}
}

func (x *Bus) unsubscribe(name event.Name, id uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	subs := x.subs[name]
	for i, s := range subs {
		if s.id == id {
			x.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(x.subs[name]) == 0 {
		delete(x.subs, name)
	}
}

// Publish delivers ev to the current subscribers of its name. Handlers may
// publish or (un)subscribe themselves; changes apply to later publishes.
func (x *Bus) Publish(ctx context.Context, ev event.Event) {
	x.mu.RLock()
	subs := x.subs[ev.Name()]
	x.mu.RUnlock()

	logging.From(ctx).Debug("event published",
		slog.String("event", ev.Name().String()),
		slog.Int("subscribers", len(subs)),
	)

	for _, s := range subs {
		x.deliver(ctx, ev, s.handler)
	}
}

func (x *Bus) deliver(ctx context.Context, ev event.Event, handler interfaces.EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			errs.Handle(ctx, goerr.New("panic in event handler",
				goerr.V("event", ev.Name().String()),
				goerr.V("recover", r),
				goerr.V("stack", string(debug.Stack())),
				goerr.T(errs.TagInternal)))
		}
	}()
	handler(ctx, ev)
}

// Count returns the number of handlers subscribed to name.
func (x *Bus) Count(name event.Name) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.subs[name])
}
