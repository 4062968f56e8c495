package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/event"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	websocket_model "github.com/secmon-lab/examchat/pkg/domain/model/websocket"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/async"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

// TabIDHeader carries the tab identity on HTTP requests. Browsers cannot set
// headers on a websocket handshake, so the handler also accepts ?tab=.
const (
	TabIDHeader = "X-Tab-ID"
	TabIDQuery  = "tab"
)

// Handler upgrades tab connections and relays their commands and events.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// TabIDFrom reads the tab identity of r.
func TabIDFrom(r *http.Request) string {
	if id := r.Header.Get(TabIDHeader); id != "" {
		return id
	}
	return r.URL.Query().Get(TabIDQuery)
}

// HandleTab serves GET /ws.
func (h *Handler) HandleTab(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.From(ctx)

	tabID := TabIDFrom(r)
	if tabID == "" {
		logger.Warn("missing tab ID in WebSocket request")
		http.Error(w, "Missing tab ID", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade connection", logging.ErrAttr(err), slog.String("tab_id", tabID))
		// The upgrader has already written the response.
		return
	}

	tab := h.hub.Tab(ctx, tabID)
	clientCtx := logging.WithAttrs(async.Detach(ctx), slog.String("tab_id", tabID))
	client := h.hub.newClient(clientCtx, conn, tab)
	if err := h.hub.register(client); err != nil {
		logger.Warn("failed to register client", logging.ErrAttr(err))
		_ = conn.Close()
		return
	}

	client.sendMessage(websocket_model.NewStatusMessage("Connected to chat"))

	go h.writePump(client)
	go h.readPump(client)

	logger.Info("WebSocket connection established",
		slog.String("tab_id", tabID),
		slog.Bool("authenticated", account.IsAuthenticated(ctx)))
}

// readPump pumps commands from the websocket connection to the tab.
func (h *Handler) readPump(client *Client) {
	logger := logging.From(client.ctx)

	defer func() {
		h.hub.unregister(client)
		if err := client.conn.Close(); err != nil {
			logger.Debug("failed to close connection in readPump", logging.ErrAttr(err))
		}
	}()

	client.conn.SetReadLimit(maxMessageSize)
	if err := client.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Error("failed to set read deadline", logging.ErrAttr(err))
		return
	}
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if client.ctx.Err() != nil {
			return
		}

		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("unexpected WebSocket close", logging.ErrAttr(err))
			}
			return
		}

		var msg websocket_model.ClientMessage
		if err := msg.FromBytes(data); err != nil {
			logger.Warn("invalid client message", logging.ErrAttr(err))
			client.sendMessage(websocket_model.NewErrorMessage(err.Error()))
			continue
		}

		if err := h.handleClientMessage(client, &msg); err != nil {
			logger.Warn("failed to handle client message",
				logging.ErrAttr(err), slog.String("type", string(msg.Type)))
			client.sendMessage(websocket_model.NewErrorMessage(err.Error()))
		}
	}
}

// writePump pumps queued frames to the websocket connection.
func (h *Handler) writePump(client *Client) {
	logger := logging.From(client.ctx)
	ticker := time.NewTicker(pingPeriod)

	// send is only closed under client.mu, so the channel is read once here.
	client.mu.Lock()
	send := client.send
	client.mu.Unlock()

	defer func() {
		ticker.Stop()
		if err := client.conn.Close(); err != nil {
			logger.Debug("failed to close connection in writePump", logging.ErrAttr(err))
		}
	}()

	if send == nil {
		return
	}

	for {
		select {
		case <-client.ctx.Done():
			return

		case data, ok := <-send:
			if err := client.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Error("failed to set write deadline", logging.ErrAttr(err))
				return
			}
			if !ok {
				if err := client.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logger.Debug("failed to write close message", logging.ErrAttr(err))
				}
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("failed to write message", logging.ErrAttr(err))
				return
			}

		case <-ticker.C:
			if err := client.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Error("failed to set write deadline for ping", logging.ErrAttr(err))
				return
			}
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleClientMessage(client *Client, msg *websocket_model.ClientMessage) error {
	ctx := client.ctx
	tab := client.tab

	switch msg.Type {
	case websocket_model.ClientPing:
		client.sendMessage(websocket_model.NewPongMessage())

	case websocket_model.ClientQuestion:
		// The answer can take up to the search timeout; keep reading meanwhile.
		async.Dispatch(ctx, func(ctx context.Context) error {
			answer, err := tab.store.SubmitQuestion(ctx, msg.Content, msg.Subject)
			if err != nil {
				client.sendMessage(websocket_model.NewErrorMessage(err.Error()))
				if goerr.HasTag(err, errs.TagValidation) || goerr.HasTag(err, errs.TagInvalidState) {
					return nil
				}
				return err
			}
			if answer != nil {
				client.sendMessage(websocket_model.NewAnswerMessage(tab.store.Snapshot()))
			}
			return nil
		})

	case websocket_model.ClientNewChat:
		tab.bus.Publish(ctx, &event.NewChat{ChatID: msg.ChatID})

	case websocket_model.ClientLoadChat:
		if err := tab.store.LoadSession(ctx, msg.ChatID, msg.Title); err != nil {
			return err
		}
		client.sendMessage(websocket_model.NewAnswerMessage(tab.store.Snapshot()))

	case websocket_model.ClientDeleteChat:
		return tab.store.DeleteSession(ctx, msg.ChatID)

	case websocket_model.ClientSwitchView:
		tab.bus.Publish(ctx, &event.SwitchView{View: msg.View})
	}

	return nil
}
