package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/secmon-lab/examchat/pkg/adapter/storage"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/repository/memory"
	"github.com/secmon-lab/examchat/pkg/service/guest"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

// UseCases holds the collaborators shared by every session store of the process.
type UseCases struct {
	accountRepo   interfaces.AccountRepository
	guestStore    interfaces.GuestStore
	searchClient  interfaces.SearchClient
	outbox        interfaces.Outbox
	searchOptions chat.SearchOptions

	deleted *deletedSessions
}

type Option func(*UseCases)

func WithAccountRepository(repo interfaces.AccountRepository) Option {
	return func(u *UseCases) {
		u.accountRepo = repo
	}
}

func WithGuestStore(store interfaces.GuestStore) Option {
	return func(u *UseCases) {
		u.guestStore = store
	}
}

func WithSearchClient(client interfaces.SearchClient) Option {
	return func(u *UseCases) {
		u.searchClient = client
	}
}

func WithOutbox(outbox interfaces.Outbox) Option {
	return func(u *UseCases) {
		u.outbox = outbox
	}
}

// WithSearchOptions sets the defaults sent with every question. The subject is
// replaced per question.
func WithSearchOptions(opts chat.SearchOptions) Option {
	return func(u *UseCases) {
		u.searchOptions = opts
	}
}

func New(opts ...Option) *UseCases {
	u := &UseCases{
		accountRepo:   memory.New(),
		guestStore:    guest.New(storage.NewMemoryClient()),
		searchClient:  &unavailableSearchClient{},
		outbox:        &inlineOutbox{},
		searchOptions: chat.DefaultSearchOptions(),
		deleted:       newDeletedSessions(maxDeletedSessions),
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Health reports the answer backend's state.
func (u *UseCases) Health(ctx context.Context) chat.Health {
	return u.searchClient.Health(ctx)
}

// inlineOutbox runs operations immediately on the caller's goroutine. Failures
// are logged, never returned.
type inlineOutbox struct{}

func (x *inlineOutbox) Enqueue(ctx context.Context, name string, op func(ctx context.Context) error) error {
	if err := op(ctx); err != nil {
		logging.From(ctx).Warn("durability operation failed",
			logging.ErrAttr(err), slog.String("operation", name))
	}
	return nil
}

func (x *inlineOutbox) Flush(ctx context.Context) error { return nil }

const maxDeletedSessions = 4096

type deletedKey struct {
	account types.AccountID
	session types.SessionID
}

// deletedSessions remembers the most recently deleted account sessions.
// Queued saves for a remembered session are dropped when they run.
type deletedSessions struct {
	mu    sync.Mutex
	limit int
	keys  map[deletedKey]struct{}
	order []deletedKey
}

func newDeletedSessions(limit int) *deletedSessions {
	return &deletedSessions{
		limit: limit,
		keys:  make(map[deletedKey]struct{}),
	}
}

func (x *deletedSessions) add(accountID types.AccountID, sessionID types.SessionID) {
	x.mu.Lock()
	defer x.mu.Unlock()

	key := deletedKey{account: accountID, session: sessionID}
	if _, ok := x.keys[key]; ok {
		return
	}
	x.keys[key] = struct{}{}
	x.order = append(x.order, key)
	if len(x.order) > x.limit {
		delete(x.keys, x.order[0])
		x.order = x.order[1:]
	}
}

func (x *deletedSessions) remove(accountID types.AccountID, sessionID types.SessionID) {
	x.mu.Lock()
	defer x.mu.Unlock()

	key := deletedKey{account: accountID, session: sessionID}
	if _, ok := x.keys[key]; !ok {
		return
	}
	delete(x.keys, key)
	for i, k := range x.order {
		if k == key {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}
}

func (x *deletedSessions) has(accountID types.AccountID, sessionID types.SessionID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.keys[deletedKey{account: accountID, session: sessionID}]
	return ok
}
