package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/fireconf"
	"github.com/secmon-lab/examchat/pkg/usecase"
)

func DefineFirestoreIndexes() *fireconf.Config {
	return defineFirestoreIndexes()
}

func WriteExport(w io.Writer, format string, chats []*usecase.ExportedChat) error {
	return writeExport(w, format, chats)
}

// RunREPL feeds in to a chat session and writes its output to out.
func RunREPL(ctx context.Context, uc *usecase.UseCases, in io.Reader, out io.Writer, subject string) error {
	return newREPL(uc, out, subject).run(ctx, in)
}

func ApplyIdentity(ctx context.Context, accountID, clientID string) (context.Context, error) {
	who := identity{accountID: accountID, clientID: clientID}
	return who.Apply(ctx)
}
