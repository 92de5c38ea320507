// Package services holds the chat backend's business logic.
package services

import (
	"context"
	"errors"
	"time"

	"arc-backend/internal/providers"
)

// Shared validation errors.
var (
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrValidation   = errors.New("input validation failed")
)

// persistTimeout bounds best-effort writes that outlive the request.
const persistTimeout = 10 * time.Second

// Completer is the dispatcher contract the services depend on.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts providers.Options) providers.Result
}

// Recorder receives service-level counters. It is satisfied by *metrics.Metrics.
type Recorder interface {
	IncUnlock(result string)
	IncPersistError(op string)
	IncSpeech(result string)
}

type nopRecorder struct{}

func (nopRecorder) IncUnlock(string)       {}
func (nopRecorder) IncPersistError(string) {}
func (nopRecorder) IncSpeech(string)       {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// detached returns a context that survives the caller's cancellation but still times out.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}
