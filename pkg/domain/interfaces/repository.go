package interfaces

import (
	"context"

	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/types"
)

// AccountRepository stores sessions and messages of the account found in the
// context. Without an account every method is a no-op returning zero values.
type AccountRepository interface {
	CreateSession(ctx context.Context, title string) (types.SessionID, error)
	GetSession(ctx context.Context, sessionID types.SessionID) (*chat.AccountSession, error)
	AppendMessage(ctx context.Context, sessionID types.SessionID, msg *chat.Message) (types.MessageID, error)
	ListSessions(ctx context.Context) ([]*chat.AccountSession, error)
	ListMessages(ctx context.Context, sessionID types.SessionID) ([]*chat.Message, error)
	RenameSession(ctx context.Context, sessionID types.SessionID, title string) error
	IncrementMessageCount(ctx context.Context, sessionID types.SessionID, delta int) error
	DeleteSession(ctx context.Context, sessionID types.SessionID) error
}

// GuestStore keeps anonymous conversations and the search history in local
// storage. Get returns nil without error when the record does not exist.
type GuestStore interface {
	Create(ctx context.Context, record *chat.GuestChat) (*chat.GuestChat, error)
	Update(ctx context.Context, id types.SessionID, patch chat.GuestPatch) (*chat.GuestChat, error)
	Get(ctx context.Context, id types.SessionID) (*chat.GuestChat, error)
	Delete(ctx context.Context, id types.SessionID) error
	List(ctx context.Context) ([]*chat.GuestChat, error)
	Clear(ctx context.Context) error

	AddSearchHistory(ctx context.Context, query string) error
	SearchHistory(ctx context.Context) ([]string, error)
	RemoveSearchHistory(ctx context.Context, query string) error
	ClearSearchHistory(ctx context.Context) error
}
