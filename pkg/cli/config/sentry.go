package config

import (
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Sentry receives the errors passed to errs.Handle, including outbox
// operations that ran out of attempts.
type Sentry struct {
	dsn        string
	env        string
	release    string
	sampleRate float64
}

func (x *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN",
			Category:    "Sentry",
			Sources:     cli.EnvVars("EXAMCHAT_SENTRY_DSN"),
			Destination: &x.dsn,
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Category:    "Sentry",
			Sources:     cli.EnvVars("EXAMCHAT_SENTRY_ENV"),
			Destination: &x.env,
		},
		&cli.StringFlag{
			Name:        "sentry-release",
			Usage:       "Release reported with events",
			Category:    "Sentry",
			Sources:     cli.EnvVars("EXAMCHAT_SENTRY_RELEASE"),
			Destination: &x.release,
		},
		&cli.FloatFlag{
			Name:        "sentry-sample-rate",
			Usage:       "Fraction of error events sent (0.0-1.0)",
			Category:    "Sentry",
			Value:       1.0,
			Sources:     cli.EnvVars("EXAMCHAT_SENTRY_SAMPLE_RATE"),
			Destination: &x.sampleRate,
		},
	}
}

func (x Sentry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", x.dsn != ""),
		slog.String("env", x.env),
		slog.String("release", x.release),
		slog.Float64("sample_rate", x.sampleRate),
	)
}

func (x *Sentry) Configure() error {
	if x.dsn == "" {
		logging.Default().Debug("sentry is not configured")
		return nil
	}
	if x.sampleRate < 0 || x.sampleRate > 1 {
		return goerr.New("sentry-sample-rate must be between 0 and 1", goerr.V("sample_rate", x.sampleRate))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         x.dsn,
		Environment: x.env,
		Release:     x.release,
		SampleRate:  x.sampleRate,
	}); err != nil {
		return goerr.Wrap(err, "failed to initialize sentry")
	}
	return nil
}
