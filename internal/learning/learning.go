// Package learning captures an IR code from a physical remote.
//
// A session puts the transceiver into learning mode and polls for a
// captured code once per interval until the budget runs out.
package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/mqtt2broadlink/internal/broadlink"
)

// Session defaults.
const (
	DefaultInterval = time.Second
	DefaultBudget   = 10 * time.Second
)

// ErrTimeout is returned when no code was captured within the budget.
// It is a normal outcome: the user simply did not press a button.
var ErrTimeout = errors.New("learning: no code captured")

// Device is the learning capability of a transceiver.
type Device interface {
	EnterLearning(ctx context.Context) error
	CheckData(ctx context.Context) ([]byte, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Session runs learn requests.
type Session struct {
	Interval time.Duration
	Budget   time.Duration
	Clock    Clock
}

// NewSession returns a session with the default one-second poll and
// ten-second budget.
func NewSession() *Session {
	return &Session{
		Interval: DefaultInterval,
		Budget:   DefaultBudget,
		Clock:    realClock{},
	}
}

// Learn enters learning mode on dev and waits for a captured code.
//
// "No data yet" and "storage not ready" replies keep the session polling;
// any other device error ends it. ctx cancels the wait between polls.
//
// Returns:
//   - []byte: the captured packet
//   - error: ErrTimeout when the budget is exhausted, or a device error
func (s *Session) Learn(ctx context.Context, dev Device) ([]byte, error) {
	clock := s.Clock
	if clock == nil {
		clock = realClock{}
	}

	if err := dev.EnterLearning(ctx); err != nil {
		return nil, fmt.Errorf("entering learning mode: %w", err)
	}

	start := clock.Now()
	for clock.Now().Sub(start) < s.Budget {
		if err := clock.Sleep(ctx, s.Interval); err != nil {
			return nil, err
		}

		data, err := dev.CheckData(ctx)
		switch {
		case err == nil:
			return data, nil
		case errors.Is(err, broadlink.ErrNoData), errors.Is(err, broadlink.ErrStorageNotReady):
			continue
		default:
			return nil, fmt.Errorf("checking for captured code: %w", err)
		}
	}

	return nil, fmt.Errorf("%w after %s", ErrTimeout, s.Budget)
}
