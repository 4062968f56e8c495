package guest

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

const (
	ChatHistoryKey   = "guestChatHistory"
	SearchHistoryKey = "chatSearchHistory"

	MaxChats         = 20
	MaxSearchHistory = 10
)

// Store keeps guest conversations and the search history as two independent
// JSON lists in a StorageClient. Records are ordered most recently updated
// first and the chat list never exceeds MaxChats entries.
//
// Both lists belong to the client in ctx (see account.WithClientID). The
// search history of an authenticated caller belongs to the account instead.
type Store struct {
	mu      sync.Mutex
	storage interfaces.StorageClient
}

var _ interfaces.GuestStore = &Store{}

func New(storage interfaces.StorageClient) *Store {
	return &Store{storage: storage}
}

func clientKey(ctx context.Context, key string) string {
	if id := account.ClientID(ctx); id != "" {
		return "clients/" + id + "/" + key
	}
	return key
}

func chatsKey(ctx context.Context) string {
	return clientKey(ctx, ChatHistoryKey)
}

func historyKey(ctx context.Context) string {
	if id := account.FromContext(ctx); id != "" {
		return "accounts/" + id.String() + "/" + SearchHistoryKey
	}
	return clientKey(ctx, SearchHistoryKey)
}

// loadList reads the JSON list at key. A missing object is an empty list. So
// is an unreadable one, which the next write overwrites.
func loadList[T any](ctx context.Context, storage interfaces.StorageClient, key string) ([]T, error) {
	rc, err := storage.GetObject(ctx, key)
	if err != nil {
		if goerr.HasTag(err, errs.TagNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read guest storage", goerr.TV(errutil.StorageKeyKey, key))
	}
	defer func() { _ = rc.Close() }()

	var list []T
	if err := json.NewDecoder(rc).Decode(&list); err != nil {
		logging.From(ctx).Warn("discarding unreadable guest storage",
			logging.ErrAttr(err), slog.String("key", key))
		return nil, nil
	}
	return list, nil
}

func (x *Store) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to encode guest storage", goerr.TV(errutil.StorageKeyKey, key))
	}

	w := x.storage.PutObject(ctx, key)
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write guest storage",
			goerr.TV(errutil.StorageKeyKey, key), goerr.T(errs.TagDatabase))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to write guest storage",
			goerr.TV(errutil.StorageKeyKey, key), goerr.T(errs.TagDatabase))
	}
	return nil
}

func (x *Store) loadChats(ctx context.Context) ([]*chat.GuestChat, error) {
	chats, err := loadList[*chat.GuestChat](ctx, x.storage, chatsKey(ctx))
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(chats, func(c *chat.GuestChat) bool { return c == nil }), nil
}

func (x *Store) saveChats(ctx context.Context, chats []*chat.GuestChat) error {
	if len(chats) > MaxChats {
		chats = chats[:MaxChats]
	}
	if chats == nil {
		chats = []*chat.GuestChat{}
	}
	return x.save(ctx, chatsKey(ctx), chats)
}

func indexOf(chats []*chat.GuestChat, id types.SessionID) int {
	return slices.IndexFunc(chats, func(c *chat.GuestChat) bool { return c.ID == id })
}

// Create stores record at the front of the list. An empty ID is replaced with a
// fresh guest ID that does not collide with any stored record; a record with
// the same ID is replaced. The oldest entries beyond MaxChats are dropped.
func (x *Store) Create(ctx context.Context, record *chat.GuestChat) (*chat.GuestChat, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	chats, err := x.loadChats(ctx)
	if err != nil {
		return nil, err
	}

	now := clock.Now(ctx)
	created := record.Copy()
	if created.ID == "" {
		for created.ID == "" || indexOf(chats, created.ID) >= 0 {
			created.ID = types.NewGuestSessionID(ctx)
		}
	}
	if created.Title == "" {
		created.Title = chat.DefaultTitle
	}
	if created.Messages == nil {
		created.Messages = []*chat.Message{}
	}
	created.MessageCount = len(created.Messages)
	created.CreatedAt = now
	created.UpdatedAt = now

	chats = slices.DeleteFunc(chats, func(c *chat.GuestChat) bool { return c.ID == created.ID })
	chats = append([]*chat.GuestChat{created}, chats...)
	if err := x.saveChats(ctx, chats); err != nil {
		return nil, err
	}
	return created.Copy(), nil
}

// Update merges patch into the record and moves it to the front of the list.
func (x *Store) Update(ctx context.Context, id types.SessionID, patch chat.GuestPatch) (*chat.GuestChat, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	chats, err := x.loadChats(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOf(chats, id)
	if idx < 0 {
		return nil, goerr.New("guest chat not found",
			goerr.TV(errutil.SessionIDKey, id), goerr.T(errs.TagNotFound))
	}

	updated := chats[idx]
	patch.Apply(updated)
	updated.UpdatedAt = clock.Now(ctx)

	chats = append(chats[:idx:idx], chats[idx+1:]...)
	chats = append([]*chat.GuestChat{updated}, chats...)
	if err := x.saveChats(ctx, chats); err != nil {
		return nil, err
	}
	return updated.Copy(), nil
}

func (x *Store) Get(ctx context.Context, id types.SessionID) (*chat.GuestChat, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	chats, err := x.loadChats(ctx)
	if err != nil {
		return nil, err
	}
	if idx := indexOf(chats, id); idx >= 0 {
		return chats[idx], nil
	}
	return nil, nil
}

// Delete removes the record. Deleting an unknown ID is a no-op.
func (x *Store) Delete(ctx context.Context, id types.SessionID) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	chats, err := x.loadChats(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(chats, id)
	if idx < 0 {
		return nil
	}
	return x.saveChats(ctx, append(chats[:idx:idx], chats[idx+1:]...))
}

func (x *Store) List(ctx context.Context) ([]*chat.GuestChat, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.loadChats(ctx)
}

func (x *Store) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.storage.DeleteObject(ctx, chatsKey(ctx))
}

func (x *Store) loadHistory(ctx context.Context) ([]string, error) {
	return loadList[string](ctx, x.storage, historyKey(ctx))
}

// AddSearchHistory moves query to the front of the history, keeping at most
// MaxSearchHistory distinct entries. Blank queries are ignored.
func (x *Store) AddSearchHistory(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	history, err := x.loadHistory(ctx)
	if err != nil {
		return err
	}
	history = slices.DeleteFunc(history, func(q string) bool { return q == query })
	history = append([]string{query}, history...)
	if len(history) > MaxSearchHistory {
		history = history[:MaxSearchHistory]
	}
	return x.save(ctx, historyKey(ctx), history)
}

func (x *Store) SearchHistory(ctx context.Context) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.loadHistory(ctx)
}

func (x *Store) RemoveSearchHistory(ctx context.Context, query string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	history, err := x.loadHistory(ctx)
	if err != nil {
		return err
	}
	history = slices.DeleteFunc(history, func(q string) bool { return q == query })
	if history == nil {
		history = []string{}
	}
	return x.save(ctx, historyKey(ctx), history)
}

func (x *Store) ClearSearchHistory(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.storage.DeleteObject(ctx, historyKey(ctx))
}
