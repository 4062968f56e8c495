package http

import (
	"context"

	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/usecase"
)

type UseCase interface {
	NewSessionStore(bus interfaces.EventBus) *usecase.SessionStore
	ListChats(ctx context.Context) ([]*usecase.ChatSummary, error)
	SearchHistory(ctx context.Context) ([]string, error)
	ClearSearchHistory(ctx context.Context) error
	Health(ctx context.Context) chat.Health
}
