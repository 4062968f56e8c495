package config

import "time"

func NewGuestStorageForTest(backend, sqlitePath string) *GuestStorage {
	return &GuestStorage{backend: backend, sqlitePath: sqlitePath}
}

func NewSearchForTest(url string, resultCount int64, threshold float64, limit int64) *Search {
	return &Search{
		url:          url,
		timeout:      time.Second,
		resultCount:  resultCount,
		mcqThreshold: threshold,
		mcqLimit:     limit,
	}
}

func NewOutboxForTest(attempts int64, initial, max time.Duration, queue int64) *Outbox {
	return &Outbox{
		maxAttempts:    attempts,
		initialBackoff: initial,
		maxBackoff:     max,
		queueSize:      queue,
	}
}

func NewSentryForTest(dsn string, sampleRate float64) *Sentry {
	return &Sentry{dsn: dsn, sampleRate: sampleRate}
}
