package cli_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/adapter/storage"
	"github.com/secmon-lab/examchat/pkg/cli"
	"github.com/secmon-lab/examchat/pkg/domain/mock"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/service/guest"
	"github.com/secmon-lab/examchat/pkg/usecase"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
)

func init() {
	color.NoColor = true
}

func newUseCases(t *testing.T) (*usecase.UseCases, *mock.SearchClientMock) {
	t.Helper()
	search := &mock.SearchClientMock{
		SearchFunc: func(ctx context.Context, query string, opts chat.SearchOptions) (*chat.SearchResult, error) {
			return &chat.SearchResult{
				AnswerText: "Answer to " + query,
				Sources:    []chat.Source{{Score: 0.9, Subject: "physics", Chapter: "Motion"}},
				MCQs: []chat.MCQ{{
					"question":       "What is velocity?",
					"options":        []any{"speed with direction", "mass"},
					"correct_answer": "a",
					"exam_name":      "JEE",
					"year":           "2021",
				}},
			}, nil
		},
	}
	uc := usecase.New(
		usecase.WithGuestStore(guest.New(storage.NewMemoryClient())),
		usecase.WithSearchClient(search),
	)
	return uc, search
}

func TestREPL(t *testing.T) {
	ctx := clock.With(context.Background(), clock.Step(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.Second))

	t.Run("question then list and history", func(t *testing.T) {
		uc, search := newUseCases(t)
		var out bytes.Buffer
		in := strings.NewReader(strings.Join([]string{
			"What is velocity?",
			"/list",
			"/history",
			"/view quiz",
			"/quit",
		}, "\n"))

		gt.NoError(t, cli.RunREPL(ctx, uc, in, &out, "physics"))

		gt.A(t, search.SearchCalls()).Length(1)
		gt.Equal(t, search.SearchCalls()[0].Opts.Subject, "physics")

		text := out.String()
		gt.S(t, text).Contains("bot: Answer to What is velocity?")
		gt.S(t, text).Contains("[0.90] physics / Motion")
		gt.S(t, text).Contains("Q1. What is velocity?")
		gt.S(t, text).Contains("a) speed with direction")
		gt.S(t, text).Contains("What is velocity?  2 messages")
		gt.S(t, text).Contains(" 1. What is velocity?")
		gt.S(t, text).Contains("switched to quiz view")
	})

	t.Run("load and delete a guest chat", func(t *testing.T) {
		uc, _ := newUseCases(t)

		var first bytes.Buffer
		gt.NoError(t, cli.RunREPL(ctx, uc, strings.NewReader("Newton's laws\n"), &first, ""))

		chats := gt.R1(uc.ListChats(ctx)).NoError(t)
		gt.A(t, chats).Length(1)
		id := chats[0].ID.String()

		var out bytes.Buffer
		in := strings.NewReader("/load " + id + "\n/delete " + id + "\n/list\n")
		gt.NoError(t, cli.RunREPL(ctx, uc, in, &out, ""))

		text := out.String()
		gt.S(t, text).Contains("# Newton's laws")
		gt.S(t, text).Contains("you: Newton's laws")
		gt.S(t, text).Contains("deleted " + id)
		gt.S(t, text).Contains("no chats")
	})

	t.Run("errors are printed and the loop continues", func(t *testing.T) {
		uc, _ := newUseCases(t)
		var out bytes.Buffer
		in := strings.NewReader("/load guest-0-missing\n/view dashboard\n/unknown\n/new\n")
		gt.NoError(t, cli.RunREPL(ctx, uc, in, &out, ""))

		text := out.String()
		gt.N(t, strings.Count(text, "error:")).Equal(3)
		gt.S(t, text).Contains("started chat guest-")
	})
}
