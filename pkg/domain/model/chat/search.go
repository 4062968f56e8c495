package chat

import (
	"fmt"
	"strings"
)

const (
	DefaultSubject      = "all"
	DefaultResultCount  = 5
	DefaultMCQThreshold = 0.25
	DefaultMCQLimit     = 8
)

// SearchOptions tunes a single question to the answer backend.
type SearchOptions struct {
	Subject      string
	ResultCount  int
	MCQThreshold float64
	MCQLimit     int
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Subject:      DefaultSubject,
		ResultCount:  DefaultResultCount,
		MCQThreshold: DefaultMCQThreshold,
		MCQLimit:     DefaultMCQLimit,
	}
}

// WithSubject returns a copy of x restricted to subject. Blank means all subjects.
func (x SearchOptions) WithSubject(subject string) SearchOptions {
	if s := strings.TrimSpace(subject); s != "" {
		x.Subject = s
	} else {
		x.Subject = DefaultSubject
	}
	return x
}

// SearchResult is the normalized answer for one question.
type SearchResult struct {
	AnswerText string
	Sources    []Source
	MCQs       []MCQ
}

// MCQ is a practice question returned with an answer. Its schema is owned by
// the backend, so it is carried as an opaque object.
type MCQ map[string]any

func (x MCQ) str(key string) string {
	switch v := x[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (x MCQ) Question() string      { return x.str("question") }
func (x MCQ) CorrectAnswer() string { return x.str("correct_answer") }
func (x MCQ) Explanation() string   { return x.str("explanation") }
func (x MCQ) ExamName() string      { return x.str("exam_name") }
func (x MCQ) Year() string          { return x.str("year") }

// Options returns the answer choices, which the backend sends either as a
// list or as a label-keyed object.
func (x MCQ) Options() []string {
	switch v := x["options"].(type) {
	case []any:
		opts := make([]string, 0, len(v))
		for _, o := range v {
			opts = append(opts, fmt.Sprint(o))
		}
		return opts
	case []string:
		return v
	case map[string]any:
		opts := make([]string, 0, len(v))
		for _, label := range []string{"A", "B", "C", "D", "E"} {
			if o, ok := v[label]; ok {
				opts = append(opts, fmt.Sprintf("%s) %v", label, o))
			}
		}
		return opts
	}
	return nil
}

const (
	HealthStatusHealthy = "healthy"
	HealthStatusError   = "error"
)

// Health is the answer backend's self-reported state.
type Health struct {
	Status            string `json:"status"`
	SystemInitialized bool   `json:"system_initialized"`
}

func (x Health) Healthy() bool {
	return x.Status == HealthStatusHealthy
}
