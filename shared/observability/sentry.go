package observability

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

// Sentry reports unexpected errors. A Sentry built without a DSN is a no-op.
type Sentry struct {
	initialized bool
}

func NewSentry(dsn, environment string, logger *slog.Logger) *Sentry {
	if dsn == "" {
		logger.Info("SENTRY_DSN not set, Sentry disabled")
		return &Sentry{initialized: false}
	}

	if environment == "" {
		environment = "development"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		TracesSampleRate: 1.0,
		EnableTracing:    true,
	})
	if err != nil {
		logger.Error("Sentry initialization failed", "error", err)
		return &Sentry{initialized: false}
	}

	logger.Info("Sentry initialized", "environment", environment)
	return &Sentry{initialized: true}
}

// CaptureException captures an error and sends it to Sentry
func (s *Sentry) CaptureException(err error) {
	if s == nil || !s.initialized || err == nil {
		return
	}
	sentry.CaptureException(err)
}

// CaptureMessage captures a message and sends it to Sentry
func (s *Sentry) CaptureMessage(message string) {
	if s == nil || !s.initialized {
		return
	}
	sentry.CaptureMessage(message)
}

// Flush waits for all events to be sent to Sentry
func (s *Sentry) Flush(timeout time.Duration) bool {
	if s == nil || !s.initialized {
		return true
	}
	return sentry.Flush(timeout)
}

// Close flushes and closes the Sentry client
func (s *Sentry) Close() {
	s.Flush(2 * time.Second)
}

// Recover captures a panic, reports it and re-panics.
func (s *Sentry) Recover() {
	if s == nil || !s.initialized {
		return
	}
	if err := recover(); err != nil {
		sentry.CurrentHub().Recover(err)
		sentry.Flush(2 * time.Second)
		panic(err)
	}
}
