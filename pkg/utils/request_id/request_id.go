package request_id

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Header carries the request ID between the HTTP surface and the answer
// backend.
const Header = "X-Request-ID"

type contextKey struct{}

// IDs supplied by callers are accepted only in this shape so they can be
// echoed into logs and headers as-is.
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

func With(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns the request ID, or "" outside a request.
func FromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(contextKey{}).(string); ok {
		return requestID
	}
	return ""
}

// Generate sets a new random request ID in ctx.
func Generate(ctx context.Context) (context.Context, string) {
	requestID := uuid.New().String()
	return With(ctx, requestID), requestID
}

// FromRequest adopts the caller's request ID when it is well formed and
// generates one otherwise.
func FromRequest(r *http.Request) (context.Context, string) {
	if id := r.Header.Get(Header); validID.MatchString(id) {
		return With(r.Context(), id), id
	}
	return Generate(r.Context())
}

// Propagate copies the request ID of ctx onto an outgoing request.
func Propagate(ctx context.Context, req *http.Request) {
	if id := FromContext(ctx); id != "" {
		req.Header.Set(Header, id)
	}
}
