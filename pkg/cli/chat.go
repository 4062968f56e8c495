package cli

import (
	"bufio"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/event"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/service/bus"
	"github.com/secmon-lab/examchat/pkg/usecase"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdChat() *cli.Command {
	var (
		who     identity
		subject string
		backend backends
	)

	flags := joinFlags(
		who.Flags("Account ID to chat as (guest when empty)"),
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "subject",
				Usage:       "Restrict answers to one subject",
				Value:       chat.DefaultSubject,
				Destination: &subject,
			},
		},
		backend.Flags(),
	)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Start an interactive chat session",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := who.Apply(ctx)
			if err != nil {
				return err
			}
			logging.From(ctx).Debug("starting chat", "backends", &backend,
				"account", account.FromContext(ctx), "client", account.ClientID(ctx))

			uc, closeBackends, err := backend.Configure(ctx)
			if err != nil {
				return err
			}
			defer closeBackends()

			return newREPL(uc, os.Stdout, subject).run(ctx, os.Stdin)
		},
	}
}

var (
	promptColor = color.New(color.FgHiCyan, color.Bold)
	userColor   = color.New(color.FgHiWhite, color.Bold)
	botColor    = color.New(color.FgGreen)
	errorColor  = color.New(color.FgRed)
	dimColor    = color.New(color.FgHiBlack)
)

type repl struct {
	uc      *usecase.UseCases
	bus     *bus.Bus
	store   *usecase.SessionStore
	subject string

	mu  sync.Mutex
	out io.Writer
}

func newREPL(uc *usecase.UseCases, out io.Writer, subject string) *repl {
	b := bus.New()
	return &repl{
		uc:      uc,
		bus:     b,
		store:   uc.NewSessionStore(b),
		subject: subject,
		out:     out,
	}
}

func (x *repl) printf(format string, args ...any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fmt.Fprintf(x.out, format, args...)
}

func (x *repl) run(ctx context.Context, in io.Reader) error {
	defer x.store.Close()

	unsubscribe := []func(){
		x.bus.Subscribe(event.NameNewMCQResults, x.onEvent),
		x.bus.Subscribe(event.NameRefreshChatList, x.onEvent),
		x.bus.Subscribe(event.NameSwitchView, x.onEvent),
	}
	defer func() {
		for _, f := range unsubscribe {
			f()
		}
	}()

	x.printf("Type a question, or /new /list /load <id> /delete <id> /history /view <name> /quit\n")

	scanner := bufio.NewScanner(in)
	for {
		x.printf("%s", promptColor.Sprint("> "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return goerr.Wrap(err, "failed to read input")
			}
			x.printf("\n")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		if err := x.handle(ctx, line); err != nil {
			x.printf("%s\n", errorColor.Sprintf("error: %s", err.Error()))
			logging.From(ctx).Debug("command failed", logging.ErrAttr(err))
		}
	}
}

func (x *repl) handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		return x.ask(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/new":
		x.bus.Publish(ctx, &event.NewChat{})
		x.printf("started chat %s\n", x.store.Snapshot().ID)
		return nil

	case "/list":
		return x.printChats(ctx)

	case "/load":
		if arg == "" {
			return goerr.New("usage: /load <id>")
		}
		if err := x.store.LoadSession(ctx, types.SessionID(arg), ""); err != nil {
			return err
		}
		x.printTranscript(x.store.Snapshot())
		return nil

	case "/delete":
		if arg == "" {
			return goerr.New("usage: /delete <id>")
		}
		if err := x.store.DeleteSession(ctx, types.SessionID(arg)); err != nil {
			return err
		}
		x.printf("deleted %s\n", arg)
		return nil

	case "/history":
		history, err := x.uc.SearchHistory(ctx)
		if err != nil {
			return err
		}
		for i, q := range history {
			x.printf("%2d. %s\n", i+1, html.UnescapeString(q))
		}
		return nil

	case "/view":
		view := types.View(arg)
		if err := view.Validate(); err != nil {
			return goerr.Wrap(err, "unknown view", goerr.V("views", types.AllViews()))
		}
		x.bus.Publish(ctx, &event.SwitchView{View: view})
		return nil

	default:
		return goerr.New("unknown command", goerr.V("command", cmd))
	}
}

func (x *repl) ask(ctx context.Context, question string) error {
	answer, err := x.store.SubmitQuestion(ctx, question, x.subject)
	if err != nil {
		return err
	}
	if answer == nil {
		return nil
	}
	x.printMessage(answer)
	return nil
}

func (x *repl) onEvent(ctx context.Context, ev event.Event) {
	switch ev := ev.(type) {
	case *event.NewMCQResults:
		x.printMCQs(ev.MCQs)
	case *event.RefreshChatList:
		if err := x.printChats(ctx); err != nil {
			logging.From(ctx).Warn("failed to refresh chat list", logging.ErrAttr(err))
		}
	case *event.SwitchView:
		x.printf("%s\n", dimColor.Sprintf("switched to %s view", ev.View))
	}
}

func (x *repl) printChats(ctx context.Context) error {
	chats, err := x.uc.ListChats(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		x.printf("%s\n", dimColor.Sprint("no chats"))
		return nil
	}

	active := x.store.Snapshot().ID
	for _, c := range chats {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		x.printf("%s %s  %s  %s\n", marker, c.ID,
			html.UnescapeString(c.Title),
			dimColor.Sprintf("%d messages, %s", c.MessageCount, humanize.Time(c.UpdatedAt)))
	}
	return nil
}

func (x *repl) printTranscript(snap usecase.Snapshot) {
	x.printf("%s\n", userColor.Sprintf("# %s", html.UnescapeString(snap.Title)))
	for _, msg := range snap.Messages {
		x.printMessage(msg)
	}
}

func (x *repl) printMessage(msg *chat.Message) {
	content := html.UnescapeString(msg.Content)
	switch {
	case msg.Type == types.MessageTypeUser:
		x.printf("%s %s\n", userColor.Sprint("you:"), content)
	case msg.Error:
		x.printf("%s %s\n", errorColor.Sprint("bot:"), content)
	default:
		x.printf("%s %s\n", botColor.Sprint("bot:"), content)
		for _, src := range msg.Sources {
			x.printf("%s\n", dimColor.Sprintf("  [%.2f] %s", src.Score, sourceLabel(src)))
		}
	}
}

func sourceLabel(src chat.Source) string {
	var parts []string
	for _, s := range []string{src.Subject, src.Class, src.Chapter, src.Topic} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " / ")
}

func (x *repl) printMCQs(mcqs []chat.MCQ) {
	for i, q := range mcqs {
		x.printf("%s\n", userColor.Sprintf("Q%d. %s", i+1, q.Question()))
		for j, opt := range q.Options() {
			x.printf("   %c) %s\n", 'a'+j, opt)
		}
		if exam := q.ExamName(); exam != "" {
			x.printf("%s\n", dimColor.Sprintf("   %s %s", exam, q.Year()))
		}
	}
}
