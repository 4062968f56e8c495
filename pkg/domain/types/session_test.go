package types_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
)

func TestNewGuestSessionID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	ctx := clock.With(context.Background(), func() time.Time { return now })

	id := types.NewGuestSessionID(ctx)
	gt.True(t, id.IsGuest())
	gt.True(t, regexp.MustCompile(`^guest-1700000000123-[0-9a-f]{9}$`).MatchString(id.String()))
	gt.NotEqual(t, types.NewGuestSessionID(ctx), id)
}

func TestSessionIDNamespace(t *testing.T) {
	gt.False(t, types.SessionID("Xy12abc").IsGuest())
	gt.False(t, types.SessionID("").IsGuest())
	gt.True(t, types.SessionID("guest-1-abc").IsGuest())
}

func TestNewMessageID(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := clock.With(context.Background(), func() time.Time { return now })

	// Same millisecond: IDs must still be unique and increasing.
	prev := types.NewMessageID(ctx)
	for range 100 {
		next := types.NewMessageID(ctx)
		gt.True(t, next > prev)
		prev = next
	}
}

func TestMessageTypeValidate(t *testing.T) {
	gt.NoError(t, types.MessageTypeUser.Validate())
	gt.NoError(t, types.MessageTypeBot.Validate())
	gt.Error(t, types.MessageType("assistant").Validate())
}

func TestViewValidate(t *testing.T) {
	for _, v := range types.AllViews() {
		gt.NoError(t, v.Validate())
	}
	gt.Error(t, types.View("dashboard").Validate())
}
