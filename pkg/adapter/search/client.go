package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
	"github.com/secmon-lab/examchat/pkg/utils/request_id"
	"github.com/secmon-lab/examchat/pkg/utils/safe"
)

const (
	networkErrorMessage = "Network error: Unable to connect to server. Please check if the backend is running."
	serverErrorMessage  = "Server error: The backend encountered an internal error. Please try again later."

	maxErrorBodySize = 4 * 1024

	DefaultTimeout = 60 * time.Second
)

// Client talks to the answer backend over HTTP. Each call is independent:
// no retry, no caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ interfaces.SearchClient = &Client{}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(x *Client) {
		x.httpClient = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(x *Client) {
		x.httpClient.Timeout = d
	}
}

// New creates a client for the backend rooted at baseURL, e.g. "http://localhost:5000/api".
func New(baseURL string, opts ...Option) *Client {
	x := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

type searchRequest struct {
	Query        string  `json:"query"`
	NResults     int     `json:"n_results"`
	Namespace    string  `json:"namespace"`
	Subject      string  `json:"subject"`
	MCQThreshold float64 `json:"mcq_threshold"`
	MCQLimit     int     `json:"mcq_limit"`
}

type searchResponse struct {
	RAGResponse string          `json:"rag_response"`
	Response    string          `json:"response"`
	Sources     json.RawMessage `json:"sources"`
	MCQResults  []chat.MCQ      `json:"mcq_results"`
	MCQs        []chat.MCQ      `json:"mcqs"`
}

func (x *searchResponse) normalize() *chat.SearchResult {
	result := &chat.SearchResult{
		AnswerText: x.RAGResponse,
		MCQs:       x.MCQResults,
	}
	if strings.TrimSpace(result.AnswerText) == "" {
		result.AnswerText = x.Response
	}
	if len(result.MCQs) == 0 {
		result.MCQs = x.MCQs
	}

	// Older backends sent sources as a preformatted string; only a list is kept.
	var raws []chat.RawSource
	if len(x.Sources) > 0 && json.Unmarshal(x.Sources, &raws) == nil {
		result.Sources = chat.NormalizeSources(raws)
	}
	return result
}

// Search sends query to POST /search. Failures are returned as errors whose
// message is fit to show to the user.
func (x *Client) Search(ctx context.Context, query string, opts chat.SearchOptions) (*chat.SearchResult, error) {
	body := searchRequest{
		Query:        query,
		NResults:     opts.ResultCount,
		Namespace:    opts.Subject,
		Subject:      opts.Subject,
		MCQThreshold: opts.MCQThreshold,
		MCQLimit:     opts.MCQLimit,
	}

	var resp searchResponse
	if err := x.request(ctx, http.MethodPost, "/search", body, &resp); err != nil {
		return nil, err
	}

	result := resp.normalize()
	logging.From(ctx).Debug("search completed",
		slog.Int("sources", len(result.Sources)),
		slog.Int("mcqs", len(result.MCQs)),
		slog.Bool("has_answer", result.AnswerText != ""),
	)
	return result, nil
}

type healthResponse struct {
	Status            string `json:"status"`
	SystemInitialized *bool  `json:"system_initialized"`
	Initialized       *bool  `json:"initialized"`
}

// Health queries GET /health. It never fails; an unreachable backend reports
// status "error".
func (x *Client) Health(ctx context.Context) chat.Health {
	var resp healthResponse
	if err := x.request(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		logging.From(ctx).Warn("health check failed", logging.ErrAttr(err))
		return chat.Health{Status: chat.HealthStatusError}
	}

	h := chat.Health{Status: resp.Status}
	switch {
	case resp.SystemInitialized != nil:
		h.SystemInitialized = *resp.SystemInitialized
	case resp.Initialized != nil:
		h.SystemInitialized = *resp.Initialized
	}
	return h
}

func (x *Client) request(ctx context.Context, method, endpoint string, in, out any) error {
	url := x.baseURL + endpoint

	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal request", goerr.TV(errutil.EndpointKey, endpoint))
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.TV(errutil.URLKey, url))
	}
	req.Header.Set("Content-Type", "application/json")
	request_id.Propagate(ctx, req)

	started := time.Now()
	resp, err := x.httpClient.Do(req)
	if err != nil {
		tag := errs.TagExternal
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			tag = errs.TagTimeout
		}
		return goerr.New(networkErrorMessage,
			goerr.V("cause", err.Error()),
			goerr.TV(errutil.URLKey, url),
			goerr.TV(errutil.DurationKey, time.Since(started)),
			goerr.T(tag))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusInternalServerError {
			return goerr.New(serverErrorMessage,
				goerr.TV(errutil.URLKey, url),
				goerr.TV(errutil.HTTPStatusKey, resp.StatusCode),
				goerr.T(errs.TagExternal))
		}

		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		detail := strings.TrimSpace(string(text))
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return goerr.New(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, detail),
			goerr.TV(errutil.URLKey, url),
			goerr.TV(errutil.HTTPStatusKey, resp.StatusCode),
			goerr.T(errs.TagExternal))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "invalid response from server",
			goerr.TV(errutil.URLKey, url),
			goerr.T(errs.TagExternal))
	}
	return nil
}
