package websocket

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/event"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
)

type ClientMessageType string

const (
	ClientPing       ClientMessageType = "ping"
	ClientQuestion   ClientMessageType = "question"
	ClientNewChat    ClientMessageType = "new_chat"
	ClientLoadChat   ClientMessageType = "load_chat"
	ClientDeleteChat ClientMessageType = "delete_chat"
	ClientSwitchView ClientMessageType = "switch_view"
)

// ClientMessage is a frame sent from the browser tab to the server.
type ClientMessage struct {
	Type      ClientMessageType `json:"type"`
	Content   string            `json:"content,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	ChatID    types.SessionID   `json:"chatId,omitempty"`
	Title     string            `json:"title,omitempty"`
	View      types.View        `json:"view,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
}

// FromBytes parses and validates a client frame.
func (m *ClientMessage) FromBytes(data []byte) error {
	if err := json.Unmarshal(data, m); err != nil {
		return goerr.Wrap(err, "invalid message format", goerr.T(errs.TagValidation))
	}
	return m.Validate()
}

func (m *ClientMessage) Validate() error {
	switch m.Type {
	case ClientPing, ClientQuestion, ClientNewChat:
		return nil
	case ClientLoadChat, ClientDeleteChat:
		if m.ChatID == "" {
			return goerr.New("chatId is required",
				goerr.V("type", m.Type), goerr.T(errs.TagValidation))
		}
		return nil
	case ClientSwitchView:
		if err := m.View.Validate(); err != nil {
			return goerr.Wrap(err, "invalid view", goerr.T(errs.TagValidation))
		}
		return nil
	default:
		return goerr.New("invalid message type",
			goerr.V("type", m.Type), goerr.T(errs.TagValidation))
	}
}

type ServerMessageType string

const (
	ServerEvent  ServerMessageType = "event"
	ServerAnswer ServerMessageType = "answer"
	ServerStatus ServerMessageType = "status"
	ServerError  ServerMessageType = "error"
	ServerPong   ServerMessageType = "pong"
)

// ServerMessage is a frame pushed to the tab. Event frames carry the bus
// event name and its payload.
type ServerMessage struct {
	Type      ServerMessageType `json:"type"`
	Event     event.Name        `json:"event,omitempty"`
	Payload   any               `json:"payload,omitempty"`
	Content   string            `json:"content,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func (r *ServerMessage) ToBytes() ([]byte, error) {
	return json.Marshal(r)
}

func newServerMessage(msgType ServerMessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Timestamp: time.Now().Unix(),
	}
}

func NewEventMessage(ev event.Event) *ServerMessage {
	msg := newServerMessage(ServerEvent)
	msg.Event = ev.Name()
	msg.Payload = ev
	return msg
}

func NewAnswerMessage(payload any) *ServerMessage {
	msg := newServerMessage(ServerAnswer)
	msg.Payload = payload
	return msg
}

func NewStatusMessage(content string) *ServerMessage {
	msg := newServerMessage(ServerStatus)
	msg.Content = content
	return msg
}

func NewErrorMessage(content string) *ServerMessage {
	msg := newServerMessage(ServerError)
	msg.Content = content
	return msg
}

func NewPongMessage() *ServerMessage {
	return newServerMessage(ServerPong)
}
