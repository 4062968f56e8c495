package chat

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
)

const (
	DefaultTitle = "New Chat"

	titleMaxLength    = 50
	titleEllipsis     = "..."
	QuestionMaxLength = 1000
)

// Session is the conversation held by a session store.
type Session struct {
	ID           types.SessionID
	Title        string
	Messages     []*Message
	MessageCount int
}

// NewSession returns an empty session titled DefaultTitle.
func NewSession(id types.SessionID) *Session {
	return &Session{
		ID:       id,
		Title:    DefaultTitle,
		Messages: []*Message{},
	}
}

func (x *Session) Copy() *Session {
	return &Session{
		ID:           x.ID,
		Title:        x.Title,
		Messages:     CopyMessages(x.Messages),
		MessageCount: x.MessageCount,
	}
}

// Untitled reports whether no question has named the session yet.
func (x *Session) Untitled() bool {
	return x.Title == "" || x.Title == DefaultTitle
}

// DeriveTitle builds a session title from the first question, truncated to
// 50 characters with an ellipsis.
func DeriveTitle(question string) string {
	q := strings.TrimSpace(question)
	runes := []rune(q)
	if len(runes) <= titleMaxLength {
		return q
	}
	return string(runes[:titleMaxLength]) + titleEllipsis
}

// ValidateQuestion rejects blank and over-long questions.
func ValidateQuestion(question string) error {
	q := strings.TrimSpace(question)
	if q == "" {
		return goerr.New("question is empty", goerr.T(errs.TagValidation))
	}
	if n := len([]rune(q)); n > QuestionMaxLength {
		return goerr.New("question is too long",
			goerr.T(errs.TagValidation),
			goerr.TV(errutil.LengthKey, n))
	}
	return nil
}

// AccountSession is the stored record of an authenticated user's conversation.
type AccountSession struct {
	ID           types.SessionID `firestore:"id" json:"id"`
	AccountID    types.AccountID `firestore:"userId" json:"userId"`
	Title        string          `firestore:"title" json:"title"`
	MessageCount int             `firestore:"messageCount" json:"messageCount"`
	CreatedAt    time.Time       `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time       `firestore:"updatedAt" json:"updatedAt"`
}
