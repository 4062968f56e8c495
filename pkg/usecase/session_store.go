package usecase

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/event"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

// Snapshot is the read surface of a session store.
type Snapshot struct {
	ID           types.SessionID `json:"id"`
	Title        string          `json:"title"`
	Messages     []*chat.Message `json:"messages"`
	MessageCount int             `json:"messageCount"`
	InFlight     bool            `json:"inFlight"`
}

// SessionStore owns the active session of one tab. The session ID decides
// the persistence path: guest IDs go to the guest store, every other ID to
// the account repository.
type SessionStore struct {
	uc  *UseCases
	bus interfaces.EventBus

	mu       sync.Mutex
	active   *chat.Session
	inFlight map[types.SessionID]bool

	unsubscribe []func()
}

// NewSessionStore creates a store bound to bus and subscribes it to the
// navigation events. Call Close to unsubscribe.
func (u *UseCases) NewSessionStore(bus interfaces.EventBus) *SessionStore {
	x := &SessionStore{
		uc:       u,
		bus:      bus,
		active:   chat.NewSession(""),
		inFlight: make(map[types.SessionID]bool),
	}

	x.unsubscribe = []func(){
		bus.Subscribe(event.NameNewChat, x.handleEvent),
		bus.Subscribe(event.NameLoadChat, x.handleEvent),
		bus.Subscribe(event.NameLoadGuestChat, x.handleEvent),
		bus.Subscribe(event.NameChatDeleted, x.handleEvent),
	}
	return x
}

func (x *SessionStore) Close() {
	for _, unsubscribe := range x.unsubscribe {
		unsubscribe()
	}
	x.unsubscribe = nil
}

func (x *SessionStore) handleEvent(ctx context.Context, ev event.Event) {
	var err error
	switch ev := ev.(type) {
	case *event.NewChat:
		if ev.ChatID != "" {
			x.install(chat.NewSession(ev.ChatID))
		} else {
			_, err = x.StartNewSession(ctx)
		}
	case *event.LoadChat:
		err = x.LoadSession(ctx, ev.ChatID, ev.Title)
	case *event.LoadGuestChat:
		x.LoadGuestSession(ctx, ev.ChatID, ev.Title, ev.Messages)
	case *event.ChatDeleted:
		x.clearIfActive(ev.ChatID)
	}

	if err != nil {
		logging.From(ctx).Warn("failed to handle event",
			logging.ErrAttr(err), slog.String("event", ev.Name().String()))
	}
}

func (x *SessionStore) install(sess *chat.Session) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.active = sess
}

func (x *SessionStore) clearIfActive(id types.SessionID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.active.ID != id {
		return false
	}
	x.active = chat.NewSession("")
	return true
}

// Snapshot returns a copy of the active session.
func (x *SessionStore) Snapshot() Snapshot {
	x.mu.Lock()
	defer x.mu.Unlock()

	return Snapshot{
		ID:           x.active.ID,
		Title:        x.active.Title,
		Messages:     chat.CopyMessages(x.active.Messages),
		MessageCount: x.active.MessageCount,
		InFlight:     x.active.ID != "" && x.inFlight[x.active.ID],
	}
}

// StartNewSession makes an empty session active. With an account in ctx the
// record is created right away; a guest record is only written once the
// first answer arrives.
func (x *SessionStore) StartNewSession(ctx context.Context) (types.SessionID, error) {
	var id types.SessionID
	if account.IsAuthenticated(ctx) {
		created, err := x.uc.accountRepo.CreateSession(ctx, chat.DefaultTitle)
		if err != nil {
			return "", goerr.Wrap(err, "failed to create session")
		}
		id = created
	}
	if id == "" {
		id = types.NewGuestSessionID(ctx)
	}

	x.install(chat.NewSession(id))
	logging.From(ctx).Debug("session started", slog.String("session_id", id.String()))
	return id, nil
}

// LoadSession replaces the active session with a stored one. Account messages
// are sorted by timestamp and the count is recomputed from them.
func (x *SessionStore) LoadSession(ctx context.Context, id types.SessionID, title string) error {
	if id.IsGuest() {
		rec, err := x.uc.guestStore.Get(ctx, id)
		if err != nil {
			return goerr.Wrap(err, "failed to load guest session", goerr.TV(errutil.SessionIDKey, id))
		}
		if rec == nil {
			return goerr.New("guest session not found",
				goerr.TV(errutil.SessionIDKey, id), goerr.T(errs.TagNotFound))
		}
		if title == "" {
			title = rec.Title
		}
		x.LoadGuestSession(ctx, id, title, rec.Messages)
		return nil
	}

	if !account.IsAuthenticated(ctx) {
		return goerr.New("account session requires an account",
			goerr.TV(errutil.SessionIDKey, id), goerr.T(errs.TagUnauthenticated))
	}

	if title == "" {
		sess, err := x.uc.accountRepo.GetSession(ctx, id)
		if err != nil {
			return goerr.Wrap(err, "failed to get session", goerr.TV(errutil.SessionIDKey, id))
		}
		if sess == nil {
			return goerr.New("session not found",
				goerr.TV(errutil.SessionIDKey, id), goerr.T(errs.TagNotFound))
		}
		title = sess.Title
	}

	messages, err := x.uc.accountRepo.ListMessages(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to list messages", goerr.TV(errutil.SessionIDKey, id))
	}
	chat.SortMessages(messages)
	if messages == nil {
		messages = []*chat.Message{}
	}

	x.install(&chat.Session{
		ID:           id,
		Title:        title,
		Messages:     messages,
		MessageCount: len(messages),
	})
	return nil
}

// LoadGuestSession installs messages verbatim as the active session.
func (x *SessionStore) LoadGuestSession(ctx context.Context, id types.SessionID, title string, messages []*chat.Message) {
	installed := slices.DeleteFunc(chat.CopyMessages(messages), func(m *chat.Message) bool {
		return m == nil || m.IsLoading
	})
	if installed == nil {
		installed = []*chat.Message{}
	}
	if title == "" {
		title = chat.DefaultTitle
	}

	x.install(&chat.Session{
		ID:           id,
		Title:        title,
		Messages:     installed,
		MessageCount: len(installed),
	})
}

// DeleteSession removes the stored session. Deleting the active session
// leaves the store in the empty "New Chat" state.
func (x *SessionStore) DeleteSession(ctx context.Context, id types.SessionID) error {
	if id.IsGuest() {
		if err := x.uc.guestStore.Delete(ctx, id); err != nil {
			return goerr.Wrap(err, "failed to delete guest session", goerr.TV(errutil.SessionIDKey, id))
		}
	} else {
		// Saves queued from now on are dropped; the ones already running
		// finish before the flush returns and are removed with the session.
		accountID := account.FromContext(ctx)
		x.uc.deleted.add(accountID, id)
		if err := x.uc.outbox.Flush(ctx); err != nil {
			x.uc.deleted.remove(accountID, id)
			return goerr.Wrap(err, "failed to flush pending writes", goerr.TV(errutil.SessionIDKey, id))
		}
		if err := x.uc.accountRepo.DeleteSession(ctx, id); err != nil {
			x.uc.deleted.remove(accountID, id)
			return goerr.Wrap(err, "failed to delete session", goerr.TV(errutil.SessionIDKey, id))
		}
	}

	x.clearIfActive(id)
	x.bus.Publish(ctx, &event.ChatDeleted{ChatID: id})
	x.bus.Publish(ctx, &event.RefreshChatList{})
	return nil
}

// SubmitQuestion asks the backend and appends the exchange to the active
// session. Blank text is ignored. A second question while one is pending for
// the same session is rejected without touching the messages. A backend
// failure is not returned: it becomes an error message in the conversation.
func (x *SessionStore) SubmitQuestion(ctx context.Context, text, subject string) (*chat.Message, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil, nil
	}
	if err := chat.ValidateQuestion(question); err != nil {
		return nil, err
	}

	x.mu.Lock()
	needSession := x.active.ID == ""
	x.mu.Unlock()
	if needSession {
		if _, err := x.StartNewSession(ctx); err != nil {
			return nil, err
		}
	}

	ex, err := x.begin(ctx, question)
	if err != nil {
		return nil, err
	}

	if ex.isAccount {
		x.persistAccountMessage(ctx, ex.sessionID, ex.userMsg)
		if ex.title != "" {
			x.renameAccountSession(ctx, ex.sessionID, ex.title)
		}
	}

	if err := x.uc.guestStore.AddSearchHistory(ctx, question); err != nil {
		logging.From(ctx).Warn("failed to record search history", logging.ErrAttr(err))
	}

	result, searchErr := x.uc.searchClient.Search(ctx, question, x.uc.searchOptions.WithSubject(subject))
	var answer *chat.Message
	if searchErr != nil {
		logging.From(ctx).Warn("search failed",
			logging.ErrAttr(searchErr), slog.String("session_id", ex.sessionID.String()))
		answer = ex.placeholder.Fail(ctx, searchErr.Error())
	} else {
		answer = ex.placeholder.Resolve(ctx, result)
	}

	snapshot, applied := x.complete(ex, answer)
	if !applied {
		logging.From(ctx).Info("discarding answer for inactive session",
			slog.String("session_id", ex.sessionID.String()))
		return answer, nil
	}

	if ex.isAccount {
		x.persistAccountMessage(ctx, ex.sessionID, answer)
	} else {
		x.persistGuestSession(ctx, snapshot)
	}

	if searchErr == nil && len(result.MCQs) > 0 {
		x.bus.Publish(ctx, &event.NewMCQResults{MCQs: result.MCQs, Query: question})
	}
	return answer, nil
}

type exchange struct {
	sessionID   types.SessionID
	isAccount   bool
	userMsg     *chat.Message
	placeholder *chat.Message
	// title is set when this exchange named the session.
	title string
}

func (x *SessionStore) begin(ctx context.Context, question string) (*exchange, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	sess := x.active
	if x.inFlight[sess.ID] {
		return nil, goerr.Wrap(errs.ErrQuestionInFlight, "question rejected",
			goerr.TV(errutil.SessionIDKey, sess.ID),
			goerr.T(errs.TagInvalidState))
	}

	ex := &exchange{
		sessionID:   sess.ID,
		isAccount:   !sess.ID.IsGuest(),
		userMsg:     chat.NewUserMessage(ctx, sess.ID, question),
		placeholder: chat.NewPlaceholder(ctx, sess.ID),
	}

	hasQuestion := slices.ContainsFunc(sess.Messages, func(m *chat.Message) bool {
		return m.Type == types.MessageTypeUser
	})
	if !hasQuestion && sess.Untitled() {
		ex.title = chat.DeriveTitle(question)
		sess.Title = ex.title
	}

	sess.Messages = append(sess.Messages, ex.userMsg.Copy(), ex.placeholder.Copy())
	sess.MessageCount++
	x.inFlight[sess.ID] = true
	return ex, nil
}

// complete swaps the placeholder for answer if the exchange's session is
// still active, and returns a copy of the resulting session.
func (x *SessionStore) complete(ex *exchange, answer *chat.Message) (*chat.Session, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	delete(x.inFlight, ex.sessionID)
	if x.active.ID != ex.sessionID {
		return nil, false
	}

	idx := slices.IndexFunc(x.active.Messages, func(m *chat.Message) bool { return m.ID == ex.placeholder.ID })
	if idx < 0 {
		return nil, false
	}
	x.active.Messages[idx] = answer.Copy()
	x.active.MessageCount++
	return x.active.Copy(), true
}

func (x *SessionStore) persistAccountMessage(ctx context.Context, sessionID types.SessionID, msg *chat.Message) {
	repo := x.uc.accountRepo
	stored := msg.Copy()

	err := x.uc.outbox.Enqueue(ctx, "append_message", func(ctx context.Context) error {
		if x.uc.deleted.has(account.FromContext(ctx), sessionID) {
			logging.From(ctx).Debug("dropping message for deleted session",
				slog.String("session_id", sessionID.String()))
			return nil
		}
		if _, err := repo.AppendMessage(ctx, sessionID, stored); err != nil {
			return err
		}
		// A failed increment leaves the count behind the messages; LoadSession
		// recounts from the messages anyway.
		return repo.IncrementMessageCount(ctx, sessionID, 1)
	})
	if err != nil {
		logging.From(ctx).Warn("failed to enqueue message save", logging.ErrAttr(err))
	}
}

func (x *SessionStore) renameAccountSession(ctx context.Context, sessionID types.SessionID, title string) {
	err := x.uc.outbox.Enqueue(ctx, "rename_session", func(ctx context.Context) error {
		if x.uc.deleted.has(account.FromContext(ctx), sessionID) {
			return nil
		}
		if err := x.uc.accountRepo.RenameSession(ctx, sessionID, title); err != nil {
			return err
		}
		x.bus.Publish(ctx, &event.RefreshChatList{})
		return nil
	})
	if err != nil {
		logging.From(ctx).Warn("failed to enqueue rename", logging.ErrAttr(err))
	}
}

// persistGuestSession writes the guest record, creating it on the first answer.
func (x *SessionStore) persistGuestSession(ctx context.Context, sess *chat.Session) {
	messages := slices.DeleteFunc(sess.Messages, func(m *chat.Message) bool { return m.IsLoading })

	var firstMessage string
	for _, m := range messages {
		if m.Type == types.MessageTypeUser {
			firstMessage = m.Content
			break
		}
	}

	logger := logging.From(ctx).With(slog.String("session_id", sess.ID.String()))
	existing, err := x.uc.guestStore.Get(ctx, sess.ID)
	if err != nil {
		logger.Warn("failed to read guest session", logging.ErrAttr(err))
		return
	}

	if existing == nil {
		_, err = x.uc.guestStore.Create(ctx, &chat.GuestChat{
			ID:           sess.ID,
			Title:        sess.Title,
			FirstMessage: firstMessage,
			Messages:     messages,
		})
	} else {
		_, err = x.uc.guestStore.Update(ctx, sess.ID, chat.GuestPatch{
			Title:    &sess.Title,
			Messages: messages,
		})
	}
	if err != nil {
		logger.Warn("failed to save guest session", logging.ErrAttr(err))
	}
}
