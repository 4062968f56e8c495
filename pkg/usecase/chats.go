package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
)

// ChatSummary is one row of the chat list.
type ChatSummary struct {
	ID           types.SessionID `json:"id" yaml:"id"`
	Title        string          `json:"title" yaml:"title"`
	MessageCount int             `json:"messageCount" yaml:"messageCount"`
	UpdatedAt    time.Time       `json:"updatedAt" yaml:"updatedAt"`
	Guest        bool            `json:"guest" yaml:"guest"`
}

// ListChats returns the account's chats when ctx carries an account, the
// guest chats otherwise. Both lists are most recent first.
func (u *UseCases) ListChats(ctx context.Context) ([]*ChatSummary, error) {
	if account.IsAuthenticated(ctx) {
		sessions, err := u.accountRepo.ListSessions(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list sessions",
				goerr.TV(errutil.AccountIDKey, account.FromContext(ctx)))
		}

		summaries := make([]*ChatSummary, 0, len(sessions))
		for _, s := range sessions {
			summaries = append(summaries, &ChatSummary{
				ID:           s.ID,
				Title:        s.Title,
				MessageCount: s.MessageCount,
				UpdatedAt:    s.UpdatedAt,
			})
		}
		return summaries, nil
	}

	records, err := u.guestStore.List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list guest chats")
	}

	summaries := make([]*ChatSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, &ChatSummary{
			ID:           r.ID,
			Title:        r.Title,
			MessageCount: r.MessageCount,
			UpdatedAt:    r.UpdatedAt,
			Guest:        true,
		})
	}
	return summaries, nil
}

// SearchHistory returns the recent questions, newest first.
func (u *UseCases) SearchHistory(ctx context.Context) ([]string, error) {
	history, err := u.guestStore.SearchHistory(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read search history")
	}
	return history, nil
}

func (u *UseCases) ClearSearchHistory(ctx context.Context) error {
	if err := u.guestStore.ClearSearchHistory(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear search history")
	}
	return nil
}

// ExportedChat is a full conversation as written by the export command.
type ExportedChat struct {
	ID        types.SessionID `json:"id" yaml:"id"`
	Title     string          `json:"title" yaml:"title"`
	Guest     bool            `json:"guest" yaml:"guest"`
	UpdatedAt time.Time       `json:"updatedAt" yaml:"updatedAt"`
	Messages  []*chat.Message `json:"messages" yaml:"messages"`
}

// Export collects every guest chat and, with an account in ctx, every
// account chat with its messages.
func (u *UseCases) Export(ctx context.Context) ([]*ExportedChat, error) {
	records, err := u.guestStore.List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list guest chats")
	}

	var exported []*ExportedChat
	for _, r := range records {
		exported = append(exported, &ExportedChat{
			ID:        r.ID,
			Title:     r.Title,
			Guest:     true,
			UpdatedAt: r.UpdatedAt,
			Messages:  r.Messages,
		})
	}

	if !account.IsAuthenticated(ctx) {
		return exported, nil
	}

	sessions, err := u.accountRepo.ListSessions(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list sessions")
	}
	for _, s := range sessions {
		messages, err := u.accountRepo.ListMessages(ctx, s.ID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list messages", goerr.TV(errutil.SessionIDKey, s.ID))
		}
		chat.SortMessages(messages)
		exported = append(exported, &ExportedChat{
			ID:        s.ID,
			Title:     s.Title,
			UpdatedAt: s.UpdatedAt,
			Messages:  messages,
		})
	}
	return exported, nil
}
