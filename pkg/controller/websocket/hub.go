package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/event"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	websocket_model "github.com/secmon-lab/examchat/pkg/domain/model/websocket"
	"github.com/secmon-lab/examchat/pkg/service/bus"
	"github.com/secmon-lab/examchat/pkg/usecase"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

type UseCase interface {
	NewSessionStore(bus interfaces.EventBus) *usecase.SessionStore
}

// forwardedEvents are pushed to every client connected to the tab that
// published them.
var forwardedEvents = []event.Name{
	event.NameNewChat,
	event.NameLoadChat,
	event.NameLoadGuestChat,
	event.NameChatDeleted,
	event.NameNewMCQResults,
	event.NameRefreshChatList,
	event.NameSwitchView,
}

// Tab is the server side of one browser tab: an event bus shared by its
// surfaces and the session store bound to it.
type Tab struct {
	id       string
	key      string
	bus      *bus.Bus
	store    *usecase.SessionStore
	clients  map[*Client]bool
	lastSeen time.Time

	unsubscribe []func()
}

func (t *Tab) ID() string { return t.id }
func (t *Tab) Bus() *bus.Bus { return t.bus }
func (t *Tab) Store() *usecase.SessionStore { return t.store }

func (t *Tab) close() {
	for _, unsubscribe := range t.unsubscribe {
		unsubscribe()
	}
	t.store.Close()
}

// Hub owns the tabs of the process and the websocket clients attached to them.
type Hub struct {
	uc      UseCase
	maxTabs int

	mu   sync.Mutex
	tabs map[string]*Tab

	ctx    context.Context
	cancel context.CancelFunc
}

const (
	// Maximum message size allowed from peer (64KB)
	maxMessageSize = 64 * 1024

	// Buffer size for client send channel
	clientSendBufferSize = 256

	DefaultMaxTabs = 1024
)

type HubOption func(*Hub)

// WithMaxTabs bounds the number of tabs kept in memory. The least recently
// used tab without connected clients is dropped first.
func WithMaxTabs(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.maxTabs = n
		}
	}
}

func NewHub(ctx context.Context, uc UseCase, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(ctx)
	h := &Hub{
		uc:      uc,
		maxTabs: DefaultMaxTabs,
		tabs:    make(map[string]*Tab),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// tabKey scopes tab IDs to the client in ctx, so a tab ID chosen by one
// client never resolves to another client's tab.
func tabKey(ctx context.Context, id string) string {
	if client := account.ClientID(ctx); client != "" {
		return client + "/" + id
	}
	return id
}

// Tab returns the tab for id, creating it on first use.
func (h *Hub) Tab(ctx context.Context, id string) *Tab {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tabLocked(ctx, tabKey(ctx, id), id)
}

func (h *Hub) tabLocked(ctx context.Context, key, id string) *Tab {
	if tab, ok := h.tabs[key]; ok {
		tab.lastSeen = clock.Now(ctx)
		return tab
	}

	tab := &Tab{
		id:       id,
		key:      key,
		bus:      bus.New(),
		clients:  make(map[*Client]bool),
		lastSeen: clock.Now(ctx),
	}
	tab.store = h.uc.NewSessionStore(tab.bus)
	for _, name := range forwardedEvents {
		tab.unsubscribe = append(tab.unsubscribe, tab.bus.Subscribe(name, func(ctx context.Context, ev event.Event) {
			h.broadcast(tab, websocket_model.NewEventMessage(ev))
		}))
	}
	h.tabs[key] = tab

	h.evict(tab)
	logging.From(ctx).Debug("tab created", slog.String("tab_id", id), slog.Int("total_tabs", len(h.tabs)))
	return tab
}

// evict drops idle tabs over the limit, never keep. Caller holds h.mu.
func (h *Hub) evict(keep *Tab) {
	for len(h.tabs) > h.maxTabs {
		var oldest *Tab
		for _, tab := range h.tabs {
			if tab == keep || len(tab.clients) > 0 {
				continue
			}
			if oldest == nil || tab.lastSeen.Before(oldest.lastSeen) {
				oldest = tab
			}
		}
		if oldest == nil {
			return
		}
		delete(h.tabs, oldest.key)
		oldest.close()
	}
}

func (h *Hub) TabCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tabs)
}

// Client is a middleman between the websocket connection and its tab.
type Client struct {
	conn *websocket.Conn
	tab  *Tab

	// Buffered channel of outbound messages
	send chan []byte

	clientID string

	ctx    context.Context
	cancel context.CancelFunc

	// Mutex to protect send channel
	mu sync.Mutex
}

func (h *Hub) newClient(ctx context.Context, conn *websocket.Conn, tab *Tab) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:     conn,
		tab:      tab,
		send:     make(chan []byte, clientSendBufferSize),
		clientID: uuid.NewString(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// enqueue queues data without blocking. It reports false when the client is
// gone or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send == nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

func (c *Client) sendMessage(msg *websocket_model.ServerMessage) {
	data, err := msg.ToBytes()
	if err != nil {
		logging.From(c.ctx).Warn("failed to marshal message", logging.ErrAttr(err))
		return
	}
	c.enqueue(data)
}

func (h *Hub) register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx.Err() != nil {
		client.closeSend()
		return goerr.New("hub is closed")
	}

	// The tab may have been evicted after the handler looked it up.
	if h.tabs[client.tab.key] != client.tab {
		client.tab = h.tabLocked(client.ctx, client.tab.key, client.tab.id)
	}
	client.tab.clients[client] = true
	logging.From(client.ctx).Info("Client registered",
		slog.String("tab_id", client.tab.id),
		slog.String("client_id", client.clientID),
		slog.Int("total_clients", len(client.tab.clients)))
	return nil
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := client.tab.clients[client]; ok {
		delete(client.tab.clients, client)
		logging.From(client.ctx).Info("Client unregistered",
			slog.String("tab_id", client.tab.id),
			slog.String("client_id", client.clientID),
			slog.Int("remaining_clients", len(client.tab.clients)))
	}
	client.closeSend()
	client.cancel()
}

// broadcast sends msg to every client of tab. Clients whose buffer is full
// are disconnected.
func (h *Hub) broadcast(tab *Tab, msg *websocket_model.ServerMessage) {
	data, err := msg.ToBytes()
	if err != nil {
		logging.From(h.ctx).Warn("failed to marshal message", logging.ErrAttr(err))
		return
	}

	h.mu.Lock()
	clients := make([]*Client, 0, len(tab.clients))
	for client := range tab.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if !client.enqueue(data) {
			h.unregister(client)
		}
	}
}

// ClientCount returns the number of clients connected to the tab.
func (h *Hub) ClientCount(ctx context.Context, tabID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tab, ok := h.tabs[tabKey(ctx, tabID)]; ok {
		return len(tab.clients)
	}
	return 0
}

// Close disconnects every client and releases every tab.
func (h *Hub) Close() error {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, tab := range h.tabs {
		for client := range tab.clients {
			client.cancel()
			client.closeSend()
		}
		tab.close()
		delete(h.tabs, id)
	}
	return nil
}
