package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
)

func (r *Memory) CreateSession(ctx context.Context, title string) (types.SessionID, error) {
	r.incrementCallCount("CreateSession")
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return "", nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := clock.Now(ctx)
	id := types.SessionID(uuid.NewString())
	r.sessions[id] = &chat.AccountSession{
		ID:        id,
		AccountID: accountID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

func (r *Memory) owned(accountID types.AccountID, sessionID types.SessionID) *chat.AccountSession {
	sess, ok := r.sessions[sessionID]
	if !ok || sess.AccountID != accountID {
		return nil
	}
	return sess
}

func (r *Memory) GetSession(ctx context.Context, sessionID types.SessionID) (*chat.AccountSession, error) {
	r.incrementCallCount("GetSession")
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if sess := r.owned(accountID, sessionID); sess != nil {
		copied := *sess
		return &copied, nil
	}
	return nil, nil
}

func (r *Memory) AppendMessage(ctx context.Context, sessionID types.SessionID, msg *chat.Message) (types.MessageID, error) {
	r.incrementCallCount("AppendMessage")
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return "", nil
	}

	stored := msg.Copy()
	if stored.ID == "" {
		stored.ID = types.NewMessageID(ctx)
	}
	stored.SessionID = sessionID
	stored.AccountID = accountID
	stored.IsLoading = false

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owned(accountID, sessionID) == nil {
		return "", r.eb.New("chat not found",
			goerr.TV(errutil.SessionIDKey, sessionID),
			goerr.TV(errutil.MessageIDKey, stored.ID),
			goerr.T(errs.TagNotFound))
	}

	// A message with the same ID overwrites the stored one, as a document Set does.
	list := r.messages[sessionID]
	if idx := slices.IndexFunc(list, func(m *chat.Message) bool { return m.ID == stored.ID }); idx >= 0 {
		list[idx] = stored
	} else {
		r.messages[sessionID] = append(list, stored)
	}
	return stored.ID, nil
}

func (r *Memory) ListSessions(ctx context.Context) ([]*chat.AccountSession, error) {
	r.incrementCallCount("ListSessions")
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*chat.AccountSession
	for _, sess := range r.sessions {
		if sess.AccountID == accountID {
			copied := *sess
			sessions = append(sessions, &copied)
		}
	}
	slices.SortFunc(sessions, func(a, b *chat.AccountSession) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return sessions, nil
}

func (r *Memory) ListMessages(ctx context.Context, sessionID types.SessionID) ([]*chat.Message, error) {
	r.incrementCallCount("ListMessages")
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var messages []*chat.Message
	for _, msg := range r.messages[sessionID] {
		if msg.AccountID == accountID {
			messages = append(messages, msg.Copy())
		}
	}
	chat.SortMessages(messages)
	return messages, nil
}

func (r *Memory) updateSession(ctx context.Context, sessionID types.SessionID, op string, update func(sess *chat.AccountSession)) error {
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.owned(accountID, sessionID)
	if sess == nil {
		return r.eb.New("chat not found",
			goerr.TV(errutil.SessionIDKey, sessionID),
			goerr.TV(errutil.OperationKey, op),
			goerr.T(errs.TagNotFound))
	}
	update(sess)
	sess.UpdatedAt = clock.Now(ctx)
	return nil
}

func (r *Memory) RenameSession(ctx context.Context, sessionID types.SessionID, title string) error {
	r.incrementCallCount("RenameSession")
	return r.updateSession(ctx, sessionID, "rename", func(sess *chat.AccountSession) {
		sess.Title = title
	})
}

func (r *Memory) IncrementMessageCount(ctx context.Context, sessionID types.SessionID, delta int) error {
	r.incrementCallCount("IncrementMessageCount")
	return r.updateSession(ctx, sessionID, "increment_message_count", func(sess *chat.AccountSession) {
		sess.MessageCount += delta
	})
}

func (r *Memory) DeleteSession(ctx context.Context, sessionID types.SessionID) error {
	r.incrementCallCount("DeleteSession")
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages[sessionID] = slices.DeleteFunc(r.messages[sessionID], func(m *chat.Message) bool {
		return m.AccountID == accountID
	})
	if len(r.messages[sessionID]) == 0 {
		delete(r.messages, sessionID)
	}

	if r.owned(accountID, sessionID) != nil {
		delete(r.sessions, sessionID)
	}
	return nil
}
