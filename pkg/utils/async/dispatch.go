package async

import (
	"context"
	"runtime/debug"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
	"github.com/secmon-lab/examchat/pkg/utils/request_id"
)

// Dispatch runs handler in a new goroutine with a detached context. Errors and
// panics are reported through errs.Handle.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx := Detach(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errs.Handle(newCtx, goerr.New("panic in async handler",
					goerr.V("recover", r),
					goerr.V("stack", string(debug.Stack()))))
			}
		}()

		if err := handler(newCtx); err != nil {
			errs.Handle(newCtx, err)
		}
	}()
}

// Detach returns a context that outlives ctx but keeps its logger, identity
// and request id.
func Detach(ctx context.Context) context.Context {
	newCtx := context.Background()
	newCtx = logging.With(newCtx, logging.From(ctx))
	if id := account.FromContext(ctx); id != "" {
		newCtx = account.WithID(newCtx, id)
	}
	if id := account.ClientID(ctx); id != "" {
		newCtx = account.WithClientID(newCtx, id)
	}
	if reqID := request_id.FromContext(ctx); reqID != "" {
		newCtx = request_id.With(newCtx, reqID)
	}
	return newCtx
}
