package config

import (
	"log/slog"
	"time"

	"github.com/secmon-lab/examchat/pkg/adapter/search"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/urfave/cli/v3"
)

type Search struct {
	url          string
	timeout      time.Duration
	resultCount  int64
	mcqThreshold float64
	mcqLimit     int64
}

func (x *Search) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "search-url",
			Usage:       "Base URL of the answer backend",
			Category:    "Search",
			Destination: &x.url,
			Sources:     cli.EnvVars("EXAMCHAT_SEARCH_URL"),
		},
		&cli.DurationFlag{
			Name:        "search-timeout",
			Usage:       "Timeout of one search request",
			Category:    "Search",
			Value:       search.DefaultTimeout,
			Destination: &x.timeout,
			Sources:     cli.EnvVars("EXAMCHAT_SEARCH_TIMEOUT"),
		},
		&cli.Int64Flag{
			Name:        "search-n-results",
			Usage:       "Number of sources requested per question",
			Category:    "Search",
			Value:       chat.DefaultResultCount,
			Destination: &x.resultCount,
			Sources:     cli.EnvVars("EXAMCHAT_SEARCH_N_RESULTS"),
		},
		&cli.FloatFlag{
			Name:        "search-mcq-threshold",
			Usage:       "Minimum relevance of returned MCQs",
			Category:    "Search",
			Value:       chat.DefaultMCQThreshold,
			Destination: &x.mcqThreshold,
			Sources:     cli.EnvVars("EXAMCHAT_SEARCH_MCQ_THRESHOLD"),
		},
		&cli.Int64Flag{
			Name:        "search-mcq-limit",
			Usage:       "Maximum number of returned MCQs",
			Category:    "Search",
			Value:       chat.DefaultMCQLimit,
			Destination: &x.mcqLimit,
			Sources:     cli.EnvVars("EXAMCHAT_SEARCH_MCQ_LIMIT"),
		},
	}
}

func (x Search) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", x.url),
		slog.Duration("timeout", x.timeout),
		slog.Int64("n_results", x.resultCount),
		slog.Float64("mcq_threshold", x.mcqThreshold),
		slog.Int64("mcq_limit", x.mcqLimit),
	)
}

func (x *Search) IsConfigured() bool {
	return x.url != ""
}

// Configure returns nil when no backend URL is set.
func (x *Search) Configure() *search.Client {
	if x.url == "" {
		return nil
	}
	return search.New(x.url, search.WithTimeout(x.timeout))
}

// Options returns the per-question defaults.
func (x *Search) Options() chat.SearchOptions {
	opts := chat.DefaultSearchOptions()
	if x.resultCount > 0 {
		opts.ResultCount = int(x.resultCount)
	}
	if x.mcqThreshold > 0 {
		opts.MCQThreshold = x.mcqThreshold
	}
	if x.mcqLimit > 0 {
		opts.MCQLimit = int(x.mcqLimit)
	}
	return opts
}
