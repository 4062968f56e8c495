package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/cli/config"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/urfave/cli/v3"
)

func cmdHealth() *cli.Command {
	var searchCfg config.Search

	return &cli.Command{
		Name:  "health",
		Usage: "Show the state of the answer backend",
		Flags: searchCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			client := searchCfg.Configure()
			if client == nil {
				return goerr.New("search-url is required", goerr.T(errs.TagValidation))
			}

			health := client.Health(ctx)
			printHealth(os.Stdout, health)
			if !health.Healthy() {
				return goerr.New("answer backend is not healthy",
					goerr.V("status", health.Status), goerr.T(errs.TagExternal))
			}
			return nil
		},
	}
}

func printHealth(w io.Writer, health chat.Health) {
	status := color.New(color.FgGreen, color.Bold).Sprint(health.Status)
	if !health.Healthy() {
		status = color.New(color.FgRed, color.Bold).Sprint(health.Status)
	}
	fmt.Fprintf(w, "status:      %s\n", status)
	fmt.Fprintf(w, "initialized: %t\n", health.SystemInitialized)
}
