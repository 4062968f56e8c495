package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/m-mizutani/gt"
	websocket_ctrl "github.com/secmon-lab/examchat/pkg/controller/websocket"
	"github.com/secmon-lab/examchat/pkg/domain/mock"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/usecase"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
)

type frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Content string          `json:"content"`
	Payload json.RawMessage `json:"payload"`
}

func setupServer(t *testing.T) (*httptest.Server, *websocket_ctrl.Hub) {
	search := &mock.SearchClientMock{
		SearchFunc: func(ctx context.Context, query string, opts chat.SearchOptions) (*chat.SearchResult, error) {
			return &chat.SearchResult{
				AnswerText: "answer to " + query,
				MCQs:       []chat.MCQ{{"question": "Pick one", "correct_answer": "A"}},
			}, nil
		},
	}
	uc := usecase.New(usecase.WithSearchClient(search))

	hub := websocket_ctrl.NewHub(context.Background(), uc)
	t.Cleanup(func() { _ = hub.Close() })

	r := chi.NewRouter()
	r.Get("/ws", websocket_ctrl.NewHandler(hub).HandleTab)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, hub
}

func dial(t *testing.T, server *httptest.Server, tabID string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?tab=" + tabID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	gt.NoError(t, err).Required()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, frameType string) frame {
	deadline := time.Now().Add(5 * time.Second)
	gt.NoError(t, conn.SetReadDeadline(deadline)).Required()
	for {
		var f frame
		gt.NoError(t, conn.ReadJSON(&f)).Required()
		if f.Type == frameType {
			return f
		}
	}
}

func TestHandleTab_MissingTabID(t *testing.T) {
	server, _ := setupServer(t)

	resp, err := http.Get(server.URL + "/ws")
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	gt.Equal(t, resp.StatusCode, http.StatusBadRequest)
}

func TestHandleTab_PingPong(t *testing.T) {
	server, hub := setupServer(t)
	conn := dial(t, server, "tab-ping")

	status := readUntil(t, conn, "status")
	gt.Equal(t, status.Content, "Connected to chat")
	gt.Equal(t, hub.ClientCount(context.Background(), "tab-ping"), 1)

	gt.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"})).Required()
	readUntil(t, conn, "pong")
}

func TestHandleTab_Question(t *testing.T) {
	server, _ := setupServer(t)
	conn := dial(t, server, "tab-question")
	readUntil(t, conn, "status")

	gt.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "question",
		"content": "What is the capital of India?",
		"subject": "geography",
	})).Required()

	mcq := readUntil(t, conn, "event")
	gt.Equal(t, mcq.Event, "newMcqResults")

	answer := readUntil(t, conn, "answer")
	var snap usecase.Snapshot
	gt.NoError(t, json.Unmarshal(answer.Payload, &snap)).Required()
	gt.Equal(t, snap.Title, "What is the capital of India?")
	gt.A(t, snap.Messages).Length(2)
	gt.Equal(t, snap.Messages[1].Content, "answer to What is the capital of India?")
}

func TestHandleTab_InvalidMessage(t *testing.T) {
	server, _ := setupServer(t)
	conn := dial(t, server, "tab-invalid")
	readUntil(t, conn, "status")

	gt.NoError(t, conn.WriteJSON(map[string]any{"type": "unknown"})).Required()
	f := readUntil(t, conn, "error")
	gt.S(t, f.Content).Contains("invalid message type")
}

func TestHub_TabsAreIsolated(t *testing.T) {
	server, hub := setupServer(t)
	first := dial(t, server, "tab-a")
	second := dial(t, server, "tab-b")
	readUntil(t, first, "status")
	readUntil(t, second, "status")

	gt.NoError(t, first.WriteJSON(map[string]any{"type": "switch_view", "view": "quiz"})).Required()
	f := readUntil(t, first, "event")
	gt.Equal(t, f.Event, "switchView")

	gt.NoError(t, second.WriteJSON(map[string]any{"type": "ping"})).Required()
	// the next frame on the other tab is its own pong, not the switchView event
	gt.NoError(t, second.SetReadDeadline(time.Now().Add(5*time.Second))).Required()
	var next frame
	gt.NoError(t, second.ReadJSON(&next)).Required()
	gt.Equal(t, next.Type, "pong")

	gt.Equal(t, hub.TabCount(), 2)
}

func TestHub_EvictsIdleTabs(t *testing.T) {
	uc := usecase.New()
	hub := websocket_ctrl.NewHub(context.Background(), uc, websocket_ctrl.WithMaxTabs(2))
	t.Cleanup(func() { _ = hub.Close() })

	ctx := clock.With(context.Background(), clock.Step(time.Unix(1700000000, 0), time.Second))
	first := hub.Tab(ctx, "one")
	hub.Tab(ctx, "two")
	hub.Tab(ctx, "three")

	gt.Equal(t, hub.TabCount(), 2)
	gt.NotEqual(t, hub.Tab(ctx, "one"), first)
}

func TestHub_RegisterAfterEviction(t *testing.T) {
	uc := usecase.New()
	hub := websocket_ctrl.NewHub(context.Background(), uc, websocket_ctrl.WithMaxTabs(1))
	t.Cleanup(func() { _ = hub.Close() })

	ctx := clock.With(context.Background(), clock.Step(time.Unix(1700000000, 0), time.Second))
	stale := hub.Tab(ctx, "one")
	hub.Tab(ctx, "two")
	gt.Equal(t, hub.ClientCount(ctx, "one"), 0)

	attached := hub.RegisterForTest(ctx, stale)
	gt.NotEqual(t, attached, stale)
	gt.Equal(t, attached, hub.Tab(ctx, "one"))
	gt.Equal(t, hub.ClientCount(ctx, "one"), 1)
}

func TestHub_TabsAreScopedByClient(t *testing.T) {
	hub := websocket_ctrl.NewHub(context.Background(), usecase.New())
	t.Cleanup(func() { _ = hub.Close() })

	ctx := context.Background()
	alice := hub.Tab(account.WithClientID(ctx, "browser-alice"), "tab-1")
	bob := hub.Tab(account.WithClientID(ctx, "browser-bob"), "tab-1")
	gt.NotEqual(t, alice, bob)
	gt.Equal(t, hub.Tab(account.WithClientID(ctx, "browser-alice"), "tab-1"), alice)
	gt.Equal(t, hub.TabCount(), 2)
}
