package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/service/outbox"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

func init() {
	logging.Quiet()
}

func newOutbox(t *testing.T, attempts int) *outbox.Outbox {
	t.Helper()
	ob := outbox.New(outbox.Config{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		QueueSize:      4,
	})
	t.Cleanup(func() { _ = ob.Close(context.Background()) })
	return ob
}

func TestOrder(t *testing.T) {
	ob := newOutbox(t, 3)
	ctx := context.Background()

	var mu sync.Mutex
	var got []int
	for i := range 20 {
		gt.NoError(t, ob.Enqueue(ctx, "append", func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, i)
			return nil
		}))
	}
	gt.NoError(t, ob.Flush(ctx))

	gt.A(t, got).Length(20)
	for i, v := range got {
		gt.Equal(t, v, i)
	}
	stats := ob.Stats()
	gt.Equal(t, stats.Enqueued, 20)
	gt.Equal(t, stats.Succeeded, 20)
	gt.Equal(t, stats.Pending, 0)
}

func TestRetry(t *testing.T) {
	ob := newOutbox(t, 5)
	ctx := context.Background()

	calls := 0
	gt.NoError(t, ob.Enqueue(ctx, "flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("unavailable")
		}
		return nil
	}))
	gt.NoError(t, ob.Flush(ctx))

	gt.Equal(t, calls, 3)
	stats := ob.Stats()
	gt.Equal(t, stats.Succeeded, 1)
	gt.Equal(t, stats.Retried, 2)
	gt.Equal(t, stats.Failed, 0)
}

func TestGiveUp(t *testing.T) {
	ob := newOutbox(t, 3)
	ctx := context.Background()

	calls := 0
	gt.NoError(t, ob.Enqueue(ctx, "broken", func(ctx context.Context) error {
		calls++
		return errors.New("always down")
	}))
	next := false
	gt.NoError(t, ob.Enqueue(ctx, "next", func(ctx context.Context) error {
		next = true
		return nil
	}))
	gt.NoError(t, ob.Flush(ctx))

	gt.Equal(t, calls, 3)
	gt.True(t, next)
	gt.Equal(t, ob.Stats().Failed, 1)
	gt.Equal(t, ob.Stats().Succeeded, 1)
}

func TestNotRetriedOnPermanentErrors(t *testing.T) {
	testCases := map[string]error{
		"not found":       goerr.New("session is gone", goerr.T(errs.TagNotFound)),
		"validation":      goerr.New("bad message", goerr.T(errs.TagValidation)),
		"unauthenticated": goerr.New("no account", goerr.T(errs.TagUnauthenticated)),
	}

	for name, permanent := range testCases {
		t.Run(name, func(t *testing.T) {
			ob := newOutbox(t, 5)
			ctx := context.Background()

			calls := 0
			gt.NoError(t, ob.Enqueue(ctx, "rename", func(ctx context.Context) error {
				calls++
				return permanent
			}))
			gt.NoError(t, ob.Flush(ctx))
			gt.Equal(t, calls, 1)
			gt.Equal(t, ob.Stats().Failed, 1)
			gt.Equal(t, ob.Stats().Retried, 0)
		})
	}
}

func TestPanicIsContained(t *testing.T) {
	ob := newOutbox(t, 1)
	ctx := context.Background()

	gt.NoError(t, ob.Enqueue(ctx, "panic", func(ctx context.Context) error {
		panic("boom")
	}))
	gt.NoError(t, ob.Flush(ctx))
	gt.Equal(t, ob.Stats().Failed, 1)
}

func TestDetachedContext(t *testing.T) {
	ob := newOutbox(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	gt.NoError(t, ob.Enqueue(ctx, "detached", func(ctx context.Context) error {
		result <- ctx.Err()
		return nil
	}))
	cancel()
	gt.NoError(t, ob.Flush(context.Background()))
	gt.NoError(t, <-result)
}

func TestClose(t *testing.T) {
	ob := outbox.New(outbox.Config{MaxAttempts: 1})
	ctx := context.Background()

	ran := false
	gt.NoError(t, ob.Enqueue(ctx, "last", func(ctx context.Context) error {
		time.Sleep(5 * time.Millisecond)
		ran = true
		return nil
	}))
	gt.NoError(t, ob.Close(ctx))
	gt.True(t, ran)
	gt.NoError(t, ob.Close(ctx))

	err := ob.Enqueue(ctx, "late", func(ctx context.Context) error { return nil })
	gt.Error(t, err)
	gt.True(t, errors.Is(err, errs.ErrOutboxClosed))
}

func TestFlushTimeout(t *testing.T) {
	ob := newOutbox(t, 1)
	release := make(chan struct{})
	gt.NoError(t, ob.Enqueue(context.Background(), "slow", func(ctx context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gt.Error(t, ob.Flush(ctx))

	close(release)
	gt.NoError(t, ob.Flush(context.Background()))
}
