package bus_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/domain/event"
	"github.com/secmon-lab/examchat/pkg/service/bus"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

func init() {
	logging.Quiet()
}

func TestPublishOrder(t *testing.T) {
	b := bus.New()
	ctx := context.Background()

	var got []string
	b.Subscribe(event.NameChatDeleted, func(ctx context.Context, ev event.Event) {
		got = append(got, "first:"+ev.(*event.ChatDeleted).ChatID.String())
	})
	b.Subscribe(event.NameChatDeleted, func(ctx context.Context, ev event.Event) {
		got = append(got, "second:"+ev.(*event.ChatDeleted).ChatID.String())
	})
	b.Subscribe(event.NameNewChat, func(ctx context.Context, ev event.Event) {
		got = append(got, "other")
	})

	b.Publish(ctx, &event.ChatDeleted{ChatID: "a"})
	b.Publish(ctx, &event.ChatDeleted{ChatID: "b"})

	gt.A(t, got).Equal([]string{"first:a", "second:a", "first:b", "second:b"})
}

func TestPanicIsolation(t *testing.T) {
	b := bus.New()
	delivered := 0

	b.Subscribe(event.NameRefreshChatList, func(ctx context.Context, ev event.Event) {
		panic("broken handler")
	})
	b.Subscribe(event.NameRefreshChatList, func(ctx context.Context, ev event.Event) {
		delivered++
	})

	b.Publish(context.Background(), &event.RefreshChatList{})
	gt.Equal(t, delivered, 1)
}

func TestUnsubscribe(t *testing.T) {
	b := bus.New()
	calls := 0

	unsubscribe := b.Subscribe(event.NameNewChat, func(ctx context.Context, ev event.Event) {
		calls++
	})
	gt.Equal(t, b.Count(event.NameNewChat), 1)

	b.Publish(context.Background(), &event.NewChat{})
	unsubscribe()
	unsubscribe()
	b.Publish(context.Background(), &event.NewChat{})

	gt.Equal(t, calls, 1)
	gt.Equal(t, b.Count(event.NameNewChat), 0)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := bus.New()
	b.Publish(context.Background(), &event.SwitchView{View: "quiz"})
}

func TestReentrantPublish(t *testing.T) {
	b := bus.New()
	var got []event.Name

	b.Subscribe(event.NameChatDeleted, func(ctx context.Context, ev event.Event) {
		got = append(got, ev.Name())
		b.Publish(ctx, &event.RefreshChatList{})
	})
	b.Subscribe(event.NameRefreshChatList, func(ctx context.Context, ev event.Event) {
		got = append(got, ev.Name())
	})

	b.Publish(context.Background(), &event.ChatDeleted{ChatID: "x"})
	gt.A(t, got).Equal([]event.Name{event.NameChatDeleted, event.NameRefreshChatList})
}
