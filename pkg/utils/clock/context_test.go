package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
)

func TestClock(t *testing.T) {
	now := time.Now()
	ctx := clock.With(context.Background(), func() time.Time { return now })
	gt.Equal(t, clock.Now(ctx), now)
}

func TestStep(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := clock.With(context.Background(), clock.Step(base, time.Second))

	gt.Equal(t, clock.Now(ctx), base)
	gt.Equal(t, clock.Now(ctx), base.Add(time.Second))
	gt.Equal(t, clock.Since(ctx, base), 2*time.Second)
}
