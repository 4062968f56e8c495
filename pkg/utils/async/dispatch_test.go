package async_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/async"
	"github.com/secmon-lab/examchat/pkg/utils/request_id"
)

func TestDispatch(t *testing.T) {
	t.Run("executes handler asynchronously", func(t *testing.T) {
		var wg sync.WaitGroup
		executed := false

		wg.Add(1)
		async.Dispatch(context.Background(), func(ctx context.Context) error {
			defer wg.Done()
			executed = true
			return nil
		})

		wg.Wait()
		gt.True(t, executed)
	})

	t.Run("handles errors without crashing", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)
		async.Dispatch(context.Background(), func(ctx context.Context) error {
			defer wg.Done()
			return errors.New("test error")
		})
		wg.Wait()
	})

	t.Run("recovers from panic", func(t *testing.T) {
		done := make(chan struct{})
		async.Dispatch(context.Background(), func(ctx context.Context) error {
			defer close(done)
			panic("test panic")
		})

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not run")
		}
	})

	t.Run("outlives a cancelled parent", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ctx = account.WithID(ctx, "user-1")
		cancel()

		result := make(chan error, 1)
		async.Dispatch(ctx, func(ctx context.Context) error {
			result <- ctx.Err()
			return nil
		})
		gt.NoError(t, <-result)
	})
}

func TestDetach(t *testing.T) {
	ctx := account.WithID(context.Background(), "user-1")
	ctx = account.WithClientID(ctx, "browser-1")
	ctx = request_id.With(ctx, "req-1")

	detached := async.Detach(ctx)
	gt.Equal(t, account.FromContext(detached), "user-1")
	gt.Equal(t, account.ClientID(detached), "browser-1")
	gt.Equal(t, request_id.FromContext(detached), "req-1")
}
