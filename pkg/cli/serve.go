package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/secmon-lab/examchat/pkg/cli/config"
	server "github.com/secmon-lab/examchat/pkg/controller/http"
	websocket_controller "github.com/secmon-lab/examchat/pkg/controller/websocket"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		addr      string
		maxTabs   int64
		sentryCfg config.Sentry
		backend   backends
	)

	flags := joinFlags(
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Aliases:     []string{"a"},
				Sources:     cli.EnvVars("EXAMCHAT_ADDR"),
				Usage:       "Listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.Int64Flag{
				Name:        "max-tabs",
				Sources:     cli.EnvVars("EXAMCHAT_MAX_TABS"),
				Usage:       "Session stores kept in memory before idle tabs are evicted",
				Value:       websocket_controller.DefaultMaxTabs,
				Destination: &maxTabs,
			},
		},
		sentryCfg.Flags(),
		backend.Flags(),
	)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the HTTP and websocket server",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := logging.From(ctx)
			logger.Info("starting server",
				"addr", addr,
				"max_tabs", maxTabs,
				"sentry", sentryCfg,
				"backends", &backend,
			)

			if err := sentryCfg.Configure(); err != nil {
				return err
			}

			uc, closeBackends, err := backend.Configure(ctx)
			if err != nil {
				return err
			}
			defer closeBackends()

			hub := websocket_controller.NewHub(ctx, uc, websocket_controller.WithMaxTabs(int(maxTabs)))
			srv := server.New(uc, server.WithHub(hub))

			httpServer := http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadTimeout:       30 * time.Second,
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext: func(l net.Listener) context.Context {
					return ctx
				},
			}

			errCh := make(chan error, 1)
			go func() {
				defer close(errCh)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				logger.Info("shutting down server")
				if err := srv.Close(); err != nil {
					logger.Error("failed to close websocket hub", logging.ErrAttr(err))
				}

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(ctx)
			}
		},
	}
}
