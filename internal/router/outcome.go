package router

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt2broadlink/internal/learning"
	"github.com/nerrad567/mqtt2broadlink/internal/pronto"
	"github.com/nerrad567/mqtt2broadlink/internal/registry"
	"github.com/nerrad567/mqtt2broadlink/internal/store"
)

// Result classifies a routed message.
type Result string

// Result values.
const (
	// ResultOK means the operation completed.
	ResultOK Result = "ok"

	// ResultTimeout means a learn session captured nothing.
	ResultTimeout Result = "timeout"

	// ResultRejected means the request named something unknown or carried
	// an unusable payload.
	ResultRejected Result = "rejected"

	// ResultFailed means a device, store or handler error.
	ResultFailed Result = "failed"

	// ResultUnrouted means no route matched the topic.
	ResultUnrouted Result = "unrouted"
)

// UnroutedHandler is the handler name reported for unmatched topics.
const UnroutedHandler = "none"

// Outcome describes one routed message.
type Outcome struct {
	Handler  string
	Subject  string
	Topic    string
	Payload  string
	Result   Result
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Recorder receives every Outcome.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, o Outcome) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, o Outcome) error {
	return f(ctx, o)
}

// classify maps a handler error to a Result.
func classify(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, learning.ErrTimeout):
		return ResultTimeout
	case errors.Is(err, ErrNoHandler):
		return ResultUnrouted
	case errors.Is(err, ErrUnknownSubject),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, pronto.ErrMalformedCode),
		errors.Is(err, pronto.ErrUnsupportedFormat),
		errors.Is(err, registry.ErrInvalidIdentity),
		errors.Is(err, logging.ErrUnknownLevel),
		errors.Is(err, store.ErrInvalidName),
		errors.Is(err, store.ErrInvalidCode):
		return ResultRejected
	default:
		return ResultFailed
	}
}
