package chat

import (
	"time"

	"github.com/secmon-lab/examchat/pkg/domain/types"
)

// GuestChat is the locally stored record of an anonymous conversation.
type GuestChat struct {
	ID           types.SessionID `json:"id" yaml:"id"`
	Title        string          `json:"title" yaml:"title"`
	FirstMessage string          `json:"firstMessage" yaml:"firstMessage"`
	Messages     []*Message      `json:"messages" yaml:"messages"`
	CreatedAt    time.Time       `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt" yaml:"updatedAt"`
	MessageCount int             `json:"messageCount" yaml:"messageCount"`
}

func (x *GuestChat) Copy() *GuestChat {
	copied := *x
	copied.Messages = CopyMessages(x.Messages)
	return &copied
}

// GuestPatch holds the fields to merge into a GuestChat. Nil fields are left
// untouched. A non-nil Messages replaces the list and recomputes MessageCount.
type GuestPatch struct {
	Title        *string
	FirstMessage *string
	Messages     []*Message
}

// Apply merges the patch into x.
func (p GuestPatch) Apply(x *GuestChat) {
	if p.Title != nil {
		x.Title = *p.Title
	}
	if p.FirstMessage != nil {
		x.FirstMessage = *p.FirstMessage
	}
	if p.Messages != nil {
		x.Messages = CopyMessages(p.Messages)
		x.MessageCount = len(p.Messages)
	}
}
