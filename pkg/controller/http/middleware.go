package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/m-mizutani/goerr/v2"
	websocket_controller "github.com/secmon-lab/examchat/pkg/controller/websocket"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/request_id"
)

const (
	accountIDHeader = "X-Account-ID"
	clientIDHeader  = "X-Client-ID"
	clientIDQuery   = "client"
	tabIDHeader     = websocket_controller.TabIDHeader
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, reqID := request_id.FromRequest(r)
		w.Header().Set(request_id.Header, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accountMiddleware takes the identity asserted by the fronting identity
// service. Requests without it are anonymous.
func accountMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(accountIDHeader); id != "" {
			r = r.WithContext(account.WithID(r.Context(), types.AccountID(id)))
		}
		next.ServeHTTP(w, r)
	})
}

// clientMiddleware binds guest data to the calling browser, which sends a
// stable X-Client-ID (or ?client= on the websocket handshake). Without one the
// tab ID stands in and the data stays private to that tab.
func clientMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(clientIDHeader)
		if id == "" {
			id = r.URL.Query().Get(clientIDQuery)
		}
		if id == "" {
			id = websocket_controller.TabIDFrom(r)
		}
		if !account.ValidClientID(id) {
			handleError(w, r, goerr.New("valid client ID is required",
				goerr.V("header", clientIDHeader), goerr.T(errs.TagValidation)))
			return
		}
		next.ServeHTTP(w, r.WithContext(account.WithClientID(r.Context(), id)))
	})
}

type ctxTabKey struct{}

// tabMiddleware resolves the caller's tab. Session endpoints act on that
// tab's session store.
func tabMiddleware(hub *websocket_controller.Hub) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tabID := websocket_controller.TabIDFrom(r)
			if tabID == "" {
				handleError(w, r, goerr.New("tab ID is required",
					goerr.V("header", tabIDHeader), goerr.T(errs.TagValidation)))
				return
			}

			tab := hub.Tab(r.Context(), tabID)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxTabKey{}, tab)))
		})
	}
}

func tabFrom(ctx context.Context) *websocket_controller.Tab {
	tab, _ := ctx.Value(ctxTabKey{}).(*websocket_controller.Tab)
	return tab
}

func panicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				panicErr := goerr.New("panic recovered",
					goerr.V("panic", fmt.Sprintf("%v", err)),
					goerr.V("stack", string(debug.Stack())),
					goerr.V("method", r.Method),
					goerr.V("path", r.URL.Path),
				)
				handleError(w, r, panicErr)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
