package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nerrad567/mqtt2broadlink/internal/broadlink"
	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqtt2broadlink/internal/learning"
	"github.com/nerrad567/mqtt2broadlink/internal/registry"
)

// Devices resolves and maintains device handles.
type Devices interface {
	Get(ctx context.Context, name string) (registry.Device, bool)
	Add(ctx context.Context, id registry.Identity) (registry.Device, bool, error)
	Adopt(ctx context.Context, id registry.Identity) error
	Remove(ctx context.Context, name string) (bool, error)
	Forget(name string)
}

// Commands is the persistent command inventory.
type Commands interface {
	Command(name string) ([]byte, bool, error)
	PutCommand(name string, code []byte) error
	PutCommandHex(name, hexCode string) error
	RemoveCommand(name string) (bool, error)
	SetLogLevel(level string) error
}

// Learner captures a code from a device.
type Learner interface {
	Learn(ctx context.Context, dev learning.Device) ([]byte, error)
}

// DiscoverFunc probes for transceivers.
type DiscoverFunc func(ctx context.Context, opts broadlink.DiscoverOptions) ([]broadlink.Discovered, error)

// LevelController changes the process log level.
type LevelController interface {
	SetLevel(level string) error
	Level() slog.Level
}

// Inbox supplies messages to Run.
type Inbox interface {
	Receive(ctx context.Context) (mqtt.Message, error)
}

// Logger defines the logging interface used by the Router.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds the collaborators of a Router.
type Deps struct {
	// Prefix is the topic prefix. Empty selects mqtt.DefaultPrefix.
	Prefix string

	Devices  Devices
	Commands Commands
	Learner  Learner
	Levels   LevelController

	// Discover defaults to broadlink.Discover.
	Discover DiscoverFunc

	// DiscoverTimeout bounds reply collection for device/<name>/discover.
	DiscoverTimeout time.Duration

	// LocalIP is announced in discovery probes. Empty selects the
	// interface routing to the target.
	LocalIP string

	Logger    Logger
	Recorders []Recorder
}

// Router classifies messages and runs the matching operation.
type Router struct {
	table *Table
	deps  Deps
	log   Logger
	now   func() time.Time
}

// New builds the route table for deps.Prefix and returns a router.
func New(deps Deps) (*Router, error) {
	if deps.Devices == nil || deps.Commands == nil || deps.Learner == nil || deps.Levels == nil {
		return nil, errors.New("router: devices, commands, learner and levels are required")
	}
	if deps.Discover == nil {
		deps.Discover = broadlink.Discover
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	r := &Router{deps: deps, log: deps.Logger, now: time.Now}

	table, err := NewTable(r.routes(mqtt.NewTopics(deps.Prefix)))
	if err != nil {
		return nil, err
	}
	r.table = table
	return r, nil
}

// Table returns the route table.
func (r *Router) Table() *Table {
	return r.table
}

// Route handles one message. It never fails: errors and panics are logged
// and reported to recorders.
func (r *Router) Route(ctx context.Context, topic string, payload []byte) Outcome {
	o := Outcome{
		Handler: UnroutedHandler,
		Topic:   topic,
		Payload: string(payload),
		Started: r.now(),
	}

	route, subject, ok := r.table.Match(topic)
	if !ok {
		o.Err = fmt.Errorf("%w: %s", ErrNoHandler, topic)
	} else {
		o.Handler = route.Name
		o.Subject = subject
		o.Err = r.invoke(ctx, route, subject, o.Payload)
	}

	o.Duration = r.now().Sub(o.Started)
	o.Result = classify(o.Err)

	r.report(o)
	for _, rec := range r.deps.Recorders {
		if err := record(ctx, rec, o); err != nil {
			r.log.Warn("recording outcome failed", "handler", o.Handler, "error", err)
		}
	}
	return o
}

// Run routes inbox messages one at a time until ctx is cancelled or the
// inbox is closed.
func (r *Router) Run(ctx context.Context, inbox Inbox) error {
	for {
		msg, err := inbox.Receive(ctx)
		switch {
		case err == nil:
			r.Route(ctx, msg.Topic, msg.Payload)
		case errors.Is(err, mqtt.ErrInboxClosed), ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("receiving message: %w", err)
		}
	}
}

// invoke runs a handler, converting a panic into an error.
func (r *Router) invoke(ctx context.Context, route Route, subject, payload string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	return route.Handler(ctx, subject, payload)
}

// record hands o to rec, converting a panic into an error.
func record(ctx context.Context, rec Recorder, o Outcome) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("recorder panic: %v", p)
		}
	}()
	return rec.Record(ctx, o)
}

// report logs o at a level matching its result.
func (r *Router) report(o Outcome) {
	args := []any{
		"handler", o.Handler,
		"subject", o.Subject,
		"topic", o.Topic,
		"payload", o.Payload,
		"duration", o.Duration,
	}

	switch o.Result {
	case ResultOK:
		r.log.Debug("message handled", args...)
	case ResultTimeout:
		r.log.Info("no code captured", args...)
	case ResultRejected, ResultUnrouted:
		r.log.Warn("message rejected", append(args, "error", o.Err)...)
	default:
		r.log.Error("error while processing message", append(args, "error", o.Err)...)
	}
}
