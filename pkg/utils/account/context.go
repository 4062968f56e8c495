package account

import (
	"context"

	"github.com/secmon-lab/examchat/pkg/domain/types"
)

type contextKey string

const accountIDKey contextKey = "account_id"

// WithID sets the authenticated account ID in context. An empty ID means anonymous (guest).
func WithID(ctx context.Context, id types.AccountID) context.Context {
	return context.WithValue(ctx, accountIDKey, id)
}

// FromContext extracts the account ID from context. Returns empty ID for guests.
func FromContext(ctx context.Context) types.AccountID {
	if id, ok := ctx.Value(accountIDKey).(types.AccountID); ok {
		return id
	}
	return ""
}

// IsAuthenticated reports whether the context carries an account identity.
func IsAuthenticated(ctx context.Context) bool {
	return FromContext(ctx) != ""
}
