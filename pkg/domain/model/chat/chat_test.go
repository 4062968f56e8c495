package chat_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
)

func TestDeriveTitle(t *testing.T) {
	t.Run("short question is kept", func(t *testing.T) {
		gt.Equal(t, chat.DeriveTitle("What is the capital of India?"), "What is the capital of India?")
	})

	t.Run("long question is truncated", func(t *testing.T) {
		q := strings.Repeat("abcdefghij", 8)
		gt.Equal(t, chat.DeriveTitle(q), q[:50]+"...")
	})

	t.Run("exactly 50 characters", func(t *testing.T) {
		q := strings.Repeat("x", 50)
		gt.Equal(t, chat.DeriveTitle(q), q)
	})

	t.Run("multibyte characters count once", func(t *testing.T) {
		q := strings.Repeat("あ", 60)
		gt.Equal(t, chat.DeriveTitle(q), strings.Repeat("あ", 50)+"...")
	})
}

func TestValidateQuestion(t *testing.T) {
	gt.NoError(t, chat.ValidateQuestion("hello"))

	err := chat.ValidateQuestion("   \t ")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, errs.TagValidation))

	err = chat.ValidateQuestion(strings.Repeat("q", 1001))
	gt.True(t, goerr.HasTag(err, errs.TagValidation))

	gt.NoError(t, chat.ValidateQuestion(strings.Repeat("q", 1000)))
}

func TestSanitize(t *testing.T) {
	gt.Equal(t, chat.Sanitize(`<a href="x">'&'</a>`),
		"&lt;a href=&quot;x&quot;&gt;&#x27;&amp;&#x27;&lt;&#x2F;a&gt;")
	gt.Equal(t, chat.Sanitize("plain text"), "plain text")
}

func TestRawSourceNormalize(t *testing.T) {
	t.Run("text falls through legacy fields", func(t *testing.T) {
		src := chat.RawSource{Score: 0.8, TextPreview: "preview", Text: "text"}.Normalize()
		gt.Equal(t, src.Content, "preview")
		gt.Equal(t, src.Score, 0.8)

		src = chat.RawSource{Content: " ", FullText: "full"}.Normalize()
		gt.Equal(t, src.Content, "full")
	})

	t.Run("chapter name wins over chapter", func(t *testing.T) {
		src := chat.RawSource{Chapter: "3", ChapterName: "Optics"}.Normalize()
		gt.Equal(t, src.Chapter, "Optics")
	})

	t.Run("score is clamped", func(t *testing.T) {
		gt.Equal(t, chat.RawSource{Score: 1.7}.Normalize().Score, 1.0)
		gt.Equal(t, chat.RawSource{Score: -2}.Normalize().Score, 0.0)
	})

	gt.A(t, chat.NormalizeSources(nil)).Length(0)
}

func TestPlaceholderResolve(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := clock.With(context.Background(), clock.Step(base, time.Second))
	sid := types.SessionID("s1")

	placeholder := chat.NewPlaceholder(ctx, sid)
	gt.True(t, placeholder.IsLoading)
	gt.Equal(t, placeholder.Type, types.MessageTypeBot)

	t.Run("resolved answer keeps the placeholder id", func(t *testing.T) {
		msg := placeholder.Resolve(ctx, &chat.SearchResult{
			AnswerText: "New Delhi",
			Sources:    []chat.Source{{Score: 0.9}},
		})
		gt.Equal(t, msg.ID, placeholder.ID)
		gt.False(t, msg.IsLoading)
		gt.False(t, msg.Error)
		gt.Equal(t, msg.Content, "New Delhi")
		gt.A(t, msg.Sources).Length(1)
		gt.True(t, !msg.Timestamp.Before(placeholder.Timestamp))
	})

	t.Run("empty answer falls back", func(t *testing.T) {
		msg := placeholder.Resolve(ctx, &chat.SearchResult{})
		gt.Equal(t, msg.Content, chat.Sanitize(chat.FallbackAnswer))
	})

	t.Run("failure", func(t *testing.T) {
		msg := placeholder.Fail(ctx, "Network error")
		gt.True(t, msg.Error)
		gt.False(t, msg.IsLoading)
		gt.Equal(t, msg.Content, "Sorry, I encountered an error: Network error. Please try again.")
	})
}

func TestSortMessages(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []*chat.Message{
		{ID: "c", Timestamp: base.Add(2 * time.Second)},
		{ID: "a", Timestamp: base},
		{ID: "b", Timestamp: base.Add(time.Second)},
	}
	chat.SortMessages(msgs)
	gt.Equal(t, msgs[0].ID, types.MessageID("a"))
	gt.Equal(t, msgs[1].ID, types.MessageID("b"))
	gt.Equal(t, msgs[2].ID, types.MessageID("c"))
}

func TestGuestPatch(t *testing.T) {
	rec := &chat.GuestChat{ID: "guest-1", Title: "old", MessageCount: 7}

	title := "new"
	chat.GuestPatch{Title: &title}.Apply(rec)
	gt.Equal(t, rec.Title, "new")
	gt.Equal(t, rec.MessageCount, 7)

	chat.GuestPatch{Messages: []*chat.Message{{ID: "1"}, {ID: "2"}}}.Apply(rec)
	gt.Equal(t, rec.MessageCount, 2)
	gt.A(t, rec.Messages).Length(2)
}

func TestMCQOptions(t *testing.T) {
	listed := chat.MCQ{"question": "Q?", "options": []any{"a", "b"}, "year": 2021.0}
	gt.A(t, listed.Options()).Length(2)
	gt.Equal(t, listed.Question(), "Q?")
	gt.Equal(t, listed.Year(), "2021")

	keyed := chat.MCQ{"options": map[string]any{"B": "two", "A": "one"}}
	gt.A(t, keyed.Options()).Equal([]string{"A) one", "B) two"})

	gt.A(t, chat.MCQ{}.Options()).Length(0)
}

func TestSearchOptions(t *testing.T) {
	opts := chat.DefaultSearchOptions()
	gt.Equal(t, opts.Subject, "all")
	gt.Equal(t, opts.ResultCount, 5)
	gt.Equal(t, opts.WithSubject("physics").Subject, "physics")
	gt.Equal(t, opts.WithSubject("  ").Subject, "all")

	gt.True(t, chat.Health{Status: "healthy"}.Healthy())
	gt.False(t, chat.Health{Status: "error"}.Healthy())
}
