package event

import (
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/types"
)

// Name identifies an event kind on the bus.
type Name string

const (
	NameNewChat         Name = "newChat"
	NameLoadChat        Name = "loadChat"
	NameLoadGuestChat   Name = "loadGuestChat"
	NameChatDeleted     Name = "chatDeleted"
	NameNewMCQResults   Name = "newMcqResults"
	NameRefreshChatList Name = "refreshChatList"
	NameSwitchView      Name = "switchView"
)

func (x Name) String() string { return string(x) }

// Event is a notification between the navigation and chat surfaces. The set
// of implementations is closed to this package.
type Event interface {
	Name() Name
	isEvent()
}

// NewChat asks the chat surface to start a fresh session. ChatID is set when
// the navigation surface already created the record.
type NewChat struct {
	ChatID types.SessionID `json:"chatId,omitempty"`
}

func (e *NewChat) Name() Name { return NameNewChat }
func (e *NewChat) isEvent()   {}

// LoadChat asks the chat surface to load an account session.
type LoadChat struct {
	ChatID types.SessionID `json:"chatId"`
	Title  string          `json:"title"`
}

func (e *LoadChat) Name() Name { return NameLoadChat }
func (e *LoadChat) isEvent()   {}

// LoadGuestChat asks the chat surface to install a guest session verbatim.
type LoadGuestChat struct {
	ChatID   types.SessionID `json:"chatId"`
	Title    string          `json:"title"`
	Messages []*chat.Message `json:"messages"`
}

func (e *LoadGuestChat) Name() Name { return NameLoadGuestChat }
func (e *LoadGuestChat) isEvent()   {}

// ChatDeleted reports that a session's record was removed.
type ChatDeleted struct {
	ChatID types.SessionID `json:"chatId"`
}

func (e *ChatDeleted) Name() Name { return NameChatDeleted }
func (e *ChatDeleted) isEvent()   {}

// NewMCQResults carries practice questions returned with an answer.
type NewMCQResults struct {
	MCQs  []chat.MCQ `json:"mcqs"`
	Query string     `json:"query"`
}

func (e *NewMCQResults) Name() Name { return NameNewMCQResults }
func (e *NewMCQResults) isEvent()   {}

// RefreshChatList asks the navigation surface to reload the session list.
type RefreshChatList struct{}

func (e *RefreshChatList) Name() Name { return NameRefreshChatList }
func (e *RefreshChatList) isEvent()   {}

// SwitchView navigates away from the chat surface.
type SwitchView struct {
	View types.View `json:"view"`
}

func (e *SwitchView) Name() Name { return NameSwitchView }
func (e *SwitchView) isEvent()   {}
