package types

import (
	"context"
	"crypto/rand"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/oklog/ulid/v2"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
)

// MessageID is a ULID: lexically sortable by creation time and monotonic
// within a process, so two IDs generated in the same millisecond never collide.
type MessageID string

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func NewMessageID(ctx context.Context) MessageID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return MessageID(ulid.MustNew(ulid.Timestamp(clock.Now(ctx)), entropy).String())
}

func (x MessageID) String() string {
	return string(x)
}

// MessageType is the author of a message.
type MessageType string

const (
	MessageTypeUser MessageType = "user"
	MessageTypeBot  MessageType = "bot"
)

func (x MessageType) String() string {
	return string(x)
}

func (x MessageType) Validate() error {
	switch x {
	case MessageTypeUser, MessageTypeBot:
		return nil
	default:
		return goerr.New("invalid message type", goerr.V("type", x))
	}
}

// View is a navigation target outside the chat surface.
type View string

const (
	ViewPYQPractice View = "pyq_practice"
	ViewEligibility View = "eligibility"
	ViewSyllabus    View = "syllabus"
	ViewQuiz        View = "quiz"
	ViewGDTopics    View = "gd_topics"
)

var allViews = []View{ViewPYQPractice, ViewEligibility, ViewSyllabus, ViewQuiz, ViewGDTopics}

// AllViews returns every known view in display order.
func AllViews() []View {
	return append([]View(nil), allViews...)
}

func (x View) Validate() error {
	for _, v := range allViews {
		if v == x {
			return nil
		}
	}
	return goerr.New("unknown view", goerr.V("view", x))
}
