package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/usecase"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
	"github.com/secmon-lab/examchat/pkg/utils/safe"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	exportFormatYAML = "yaml"
	exportFormatJSON = "json"
	exportFormatText = "text"
)

func cmdExport() *cli.Command {
	var (
		who     identity
		format  string
		output  string
		backend backends
	)

	flags := joinFlags(
		who.Flags("Also export the chats of this account"),
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "Output format [yaml|json|text]",
				Value:       exportFormatYAML,
				Destination: &format,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "Output file (default: stdout)",
				Destination: &output,
			},
		},
		backend.Flags(),
	)

	return &cli.Command{
		Name:  "export",
		Usage: "Dump stored chats with their messages",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := who.Apply(ctx)
			if err != nil {
				return err
			}

			uc, closeBackends, err := backend.Configure(ctx)
			if err != nil {
				return err
			}
			defer closeBackends()

			chats, err := uc.Export(ctx)
			if err != nil {
				return err
			}
			logging.From(ctx).Info("exporting chats", "count", len(chats), "format", format)

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return goerr.Wrap(err, "failed to create output file", goerr.V("path", output))
				}
				defer safe.Close(ctx, f)
				w = f
			}

			return writeExport(w, format, chats)
		},
	}
}

func writeExport(w io.Writer, format string, chats []*usecase.ExportedChat) error {
	if chats == nil {
		chats = []*usecase.ExportedChat{}
	}

	switch format {
	case exportFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(chats); err != nil {
			return goerr.Wrap(err, "failed to encode yaml")
		}
		return enc.Close()

	case exportFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(chats); err != nil {
			return goerr.Wrap(err, "failed to encode json")
		}
		return nil

	case exportFormatText:
		for _, c := range chats {
			kind := "account"
			if c.Guest {
				kind = "guest"
			}
			fmt.Fprintf(w, "== %s (%s, %s, updated %s)\n", html.UnescapeString(c.Title), c.ID, kind, humanize.Time(c.UpdatedAt))
			for _, msg := range c.Messages {
				fmt.Fprintf(w, "[%s] %s: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"), msg.Type, html.UnescapeString(msg.Content))
			}
			fmt.Fprintln(w)
		}
		return nil

	default:
		return goerr.New("unknown export format", goerr.V("format", format), goerr.T(errs.TagValidation))
	}
}
