package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/service/outbox"
	"github.com/urfave/cli/v3"
)

type Outbox struct {
	maxAttempts    int64
	initialBackoff time.Duration
	maxBackoff     time.Duration
	queueSize      int64
}

func (x *Outbox) Flags() []cli.Flag {
	def := outbox.DefaultConfig()
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "outbox-max-attempts",
			Usage:       "Attempts per account write before giving up",
			Category:    "Outbox",
			Value:       int64(def.MaxAttempts),
			Destination: &x.maxAttempts,
			Sources:     cli.EnvVars("EXAMCHAT_OUTBOX_MAX_ATTEMPTS"),
		},
		&cli.DurationFlag{
			Name:        "outbox-initial-backoff",
			Usage:       "First retry delay",
			Category:    "Outbox",
			Value:       def.InitialBackoff,
			Destination: &x.initialBackoff,
			Sources:     cli.EnvVars("EXAMCHAT_OUTBOX_INITIAL_BACKOFF"),
		},
		&cli.DurationFlag{
			Name:        "outbox-max-backoff",
			Usage:       "Upper bound of the retry delay",
			Category:    "Outbox",
			Value:       def.MaxBackoff,
			Destination: &x.maxBackoff,
			Sources:     cli.EnvVars("EXAMCHAT_OUTBOX_MAX_BACKOFF"),
		},
		&cli.Int64Flag{
			Name:        "outbox-queue-size",
			Usage:       "Pending writes buffered before Enqueue blocks",
			Category:    "Outbox",
			Value:       int64(def.QueueSize),
			Destination: &x.queueSize,
			Sources:     cli.EnvVars("EXAMCHAT_OUTBOX_QUEUE_SIZE"),
		},
	}
}

func (x Outbox) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("max_attempts", x.maxAttempts),
		slog.Duration("initial_backoff", x.initialBackoff),
		slog.Duration("max_backoff", x.maxBackoff),
		slog.Int64("queue_size", x.queueSize),
	)
}

func (x *Outbox) Configure() (*outbox.Outbox, error) {
	if x.maxAttempts < 1 {
		return nil, goerr.New("outbox-max-attempts must be at least 1", goerr.V("max_attempts", x.maxAttempts))
	}
	if x.initialBackoff <= 0 || x.maxBackoff < x.initialBackoff {
		return nil, goerr.New("invalid outbox backoff",
			goerr.V("initial", x.initialBackoff), goerr.V("max", x.maxBackoff))
	}
	if x.queueSize < 1 {
		return nil, goerr.New("outbox-queue-size must be at least 1", goerr.V("queue_size", x.queueSize))
	}

	return outbox.New(outbox.Config{
		MaxAttempts:    int(x.maxAttempts),
		InitialBackoff: x.initialBackoff,
		MaxBackoff:     x.maxBackoff,
		QueueSize:      int(x.queueSize),
	}), nil
}
