package account

import (
	"context"
	"regexp"
)

const clientIDKey contextKey = "client_id"

var validClientID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidClientID reports whether id can name a guest storage scope.
func ValidClientID(id string) bool {
	return validClientID.MatchString(id)
}

// WithClientID sets the browser or terminal that owns the guest data of the
// request. Guest chats and search history are only visible to the same client.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// ClientID returns the client ID in ctx, or "" when none is set.
func ClientID(ctx context.Context) string {
	if id, ok := ctx.Value(clientIDKey).(string); ok {
		return id
	}
	return ""
}
