package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
)

const (
	// FallbackAnswer is shown when the backend returns no answer text.
	FallbackAnswer = "I received your question but couldn't generate a proper response."

	errorAnswerFormat = "Sorry, I encountered an error: %s. Please try again."
)

// Message is one entry of a conversation.
type Message struct {
	ID        types.MessageID   `firestore:"id" json:"id" yaml:"id"`
	SessionID types.SessionID   `firestore:"chatId" json:"-" yaml:"-"`
	AccountID types.AccountID   `firestore:"userId" json:"-" yaml:"-"`
	Type      types.MessageType `firestore:"type" json:"type" yaml:"type"`
	Content   string            `firestore:"content" json:"content" yaml:"content"`
	Sources   []Source          `firestore:"sources,omitempty" json:"sources,omitempty" yaml:"sources,omitempty"`
	Error     bool              `firestore:"error,omitempty" json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp time.Time         `firestore:"timestamp" json:"timestamp" yaml:"timestamp"`

	// IsLoading marks the placeholder shown while a question is in flight.
	IsLoading bool `firestore:"-" json:"-" yaml:"-"`
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize escapes markup so that stored content is always plain text.
func Sanitize(text string) string {
	return htmlEscaper.Replace(text)
}

func NewUserMessage(ctx context.Context, sessionID types.SessionID, content string) *Message {
	return &Message{
		ID:        types.NewMessageID(ctx),
		SessionID: sessionID,
		Type:      types.MessageTypeUser,
		Content:   Sanitize(content),
		Timestamp: clock.Now(ctx),
	}
}

// NewPlaceholder creates the loading bot message that stands in for a pending answer.
func NewPlaceholder(ctx context.Context, sessionID types.SessionID) *Message {
	return &Message{
		ID:        types.NewMessageID(ctx),
		SessionID: sessionID,
		Type:      types.MessageTypeBot,
		IsLoading: true,
		Timestamp: clock.Now(ctx),
	}
}

// Resolve returns the answered bot message that replaces placeholder x.
func (x *Message) Resolve(ctx context.Context, result *SearchResult) *Message {
	content := FallbackAnswer
	var sources []Source
	if result != nil {
		if strings.TrimSpace(result.AnswerText) != "" {
			content = result.AnswerText
		}
		sources = result.Sources
	}

	return &Message{
		ID:        x.ID,
		SessionID: x.SessionID,
		Type:      types.MessageTypeBot,
		Content:   Sanitize(content),
		Sources:   sources,
		Timestamp: laterOf(x.Timestamp, clock.Now(ctx)),
	}
}

// Fail returns the error bot message that replaces placeholder x.
func (x *Message) Fail(ctx context.Context, reason string) *Message {
	return &Message{
		ID:        x.ID,
		SessionID: x.SessionID,
		Type:      types.MessageTypeBot,
		Content:   Sanitize(fmt.Sprintf(errorAnswerFormat, reason)),
		Error:     true,
		Timestamp: laterOf(x.Timestamp, clock.Now(ctx)),
	}
}

func (x *Message) Copy() *Message {
	copied := *x
	copied.Sources = slices.Clone(x.Sources)
	return &copied
}

func laterOf(a, b time.Time) time.Time {
	if b.Before(a) {
		return a
	}
	return b
}

// SortMessages orders messages by timestamp ascending. Ties keep their
// relative order, then fall back to ID which is creation-ordered.
func SortMessages(messages []*Message) {
	slices.SortStableFunc(messages, func(a, b *Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

// CopyMessages deep-copies a message list.
func CopyMessages(messages []*Message) []*Message {
	if messages == nil {
		return nil
	}
	result := make([]*Message, len(messages))
	for i, msg := range messages {
		result[i] = msg.Copy()
	}
	return result
}
