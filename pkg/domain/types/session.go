package types

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
)

// GuestSessionPrefix marks session IDs owned by the guest (local) store.
const GuestSessionPrefix = "guest-"

// SessionID identifies a conversation. IDs starting with GuestSessionPrefix
// belong to the guest store, every other ID is an opaque account-scoped ID.
type SessionID string

// NewGuestSessionID generates "guest-<unix millis>-<9 random chars>".
func NewGuestSessionID(ctx context.Context) SessionID {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return SessionID(fmt.Sprintf("%s%d-%s", GuestSessionPrefix, clock.Now(ctx).UnixMilli(), suffix))
}

func (x SessionID) String() string {
	return string(x)
}

// IsGuest reports whether the ID belongs to the guest namespace.
func (x SessionID) IsGuest() bool {
	return strings.HasPrefix(string(x), GuestSessionPrefix)
}

// AccountID is the identity of an authenticated user. Empty means anonymous.
type AccountID string

func (x AccountID) String() string {
	return string(x)
}
