// Package probe decides whether a hosted web app is alive.
//
// A run loads the target page in a browser Session and evaluates an ordered
// list of probes. The first probe that matches decides the verdict; when none
// does the run fails with ErrUnverified.
package probe

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/keepalive/internal/clock"
	"github.com/ibeckermayer/keepalive/internal/types"
)

// ErrUnverified is returned when no probe could confirm the app is alive
var ErrUnverified = errors.New("app down or not responding with expected content")

// Session is a loaded browser page. Implementations must tolerate Close being
// called after a failed operation.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Frames returns the main document and every nested frame that could be
	// read. A frame that fails mid-query is left out rather than failing the call.
	Frames(ctx context.Context) ([]types.Frame, error)
	// Click clicks the index-th button of the frame, as listed in Frame.Buttons.
	Click(ctx context.Context, frameID string, index int) error
	// HTML returns the main document's outer HTML.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher opens a new Session
type Launcher func(ctx context.Context) (Session, error)

// Outcome is the tri-state result of a single probe
type Outcome int

const (
	NotMatched Outcome = iota
	Matched
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Errored:
		return "errored"
	default:
		return "not matched"
	}
}

// Env is what a probe sees during a run
type Env struct {
	Session  Session
	Clock    clock.Clock
	Log      *zap.Logger
	Deadline time.Time // end of the run's timeout budget
	// ScanTimeout bounds every single page query
	ScanTimeout time.Duration

	clicked bool
}

// frames reads the page's frames, giving up after ScanTimeout
func (e *Env) frames(ctx context.Context) ([]types.Frame, error) {
	ctx, cancel := e.scanContext(ctx)
	defer cancel()
	return e.Session.Frames(ctx)
}

// click clicks a button, giving up after ScanTimeout
func (e *Env) click(ctx context.Context, frameID string, index int) error {
	ctx, cancel := e.scanContext(ctx)
	defer cancel()
	return e.Session.Click(ctx, frameID, index)
}

func (e *Env) scanContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.ScanTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.ScanTimeout)
}

// Probe is one named check of a run
type Probe interface {
	Name() string
	// Verdict is the run's verdict when this probe matches.
	Verdict() types.Verdict
	Check(ctx context.Context, env *Env) (Outcome, error)
}
