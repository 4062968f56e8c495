package errs

import "errors"

// ErrQuestionInFlight is returned when a session is still waiting for an answer.
var ErrQuestionInFlight = errors.New("a question is already in flight for this session")

// ErrOutboxClosed is returned when an operation is enqueued after shutdown.
var ErrOutboxClosed = errors.New("outbox is closed")
