package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	level      string
	format     string
	output     string
	quiet      bool
	stacktrace bool
	maxSizeMB  int64
	maxBackups int64
}

func (x *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "logging",
			Aliases:     []string{"l"},
			Sources:     cli.EnvVars("EXAMCHAT_LOG_LEVEL"),
			Usage:       "Set log level [debug|info|warn|error]",
			Value:       "info",
			Destination: &x.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Category:    "logging",
			Aliases:     []string{"f"},
			Sources:     cli.EnvVars("EXAMCHAT_LOG_FORMAT"),
			Usage:       "Set log format [console|json]",
			Value:       "console",
			Destination: &x.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Category:    "logging",
			Aliases:     []string{"o"},
			Sources:     cli.EnvVars("EXAMCHAT_LOG_OUTPUT"),
			Usage:       "Set log output (rotated file other than '-', 'stdout', 'stderr')",
			Value:       "stderr",
			Destination: &x.output,
		},
		&cli.BoolFlag{
			Name:        "log-quiet",
			Category:    "logging",
			Aliases:     []string{"q"},
			Usage:       "Quiet mode (no log output)",
			Sources:     cli.EnvVars("EXAMCHAT_LOG_QUIET"),
			Destination: &x.quiet,
		},
		&cli.BoolFlag{
			Name:        "log-stacktrace",
			Category:    "logging",
			Aliases:     []string{"s"},
			Usage:       "Show stacktrace (only for console format)",
			Sources:     cli.EnvVars("EXAMCHAT_LOG_STACKTRACE"),
			Destination: &x.stacktrace,
			Value:       true,
		},
		&cli.Int64Flag{
			Name:        "log-max-size-mb",
			Category:    "logging",
			Usage:       "Rotate the log file after this many megabytes",
			Sources:     cli.EnvVars("EXAMCHAT_LOG_MAX_SIZE_MB"),
			Value:       100,
			Destination: &x.maxSizeMB,
		},
		&cli.Int64Flag{
			Name:        "log-max-backups",
			Category:    "logging",
			Usage:       "Number of rotated log files to keep",
			Sources:     cli.EnvVars("EXAMCHAT_LOG_MAX_BACKUPS"),
			Value:       3,
			Destination: &x.maxBackups,
		},
	}
}

func (x Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", x.level),
		slog.String("format", x.format),
		slog.String("output", x.output),
	)
}

// Configure sets up logger and returns closer function and error. You can call closer even if error is not nil.
func (x *Logger) Configure() (func(), error) {
	if x.quiet {
		logging.Quiet()
		return func() {}, nil
	}

	closer := func() {}

	var format logging.Format
	if x.format == "" {
		term := os.Getenv("TERM")
		if strings.Contains(term, "color") || strings.Contains(term, "xterm") {
			format = logging.FormatConsole
		} else {
			format = logging.FormatJSON
		}
	} else {
		f, err := logging.ParseFormat(x.format)
		if err != nil {
			return closer, err
		}
		format = f
	}

	level, err := logging.ParseLevel(x.level)
	if err != nil {
		return closer, err
	}

	var output io.Writer
	switch x.output {
	case "stdout", "-":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		if x.maxSizeMB <= 0 {
			return closer, goerr.New("log-max-size-mb must be positive", goerr.V("size", x.maxSizeMB))
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Clean(x.output),
			MaxSize:    int(x.maxSizeMB),
			MaxBackups: int(x.maxBackups),
		}
		output = rotator
		closer = func() {
			_ = rotator.Close()
		}
	}

	logger := logging.New(output, level, format, x.stacktrace)
	logging.SetDefault(logger)

	return closer, nil
}
