package probe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/keepalive/internal/markers"
	"github.com/ibeckermayer/keepalive/internal/types"
)

// AliveMarker polls every frame for a marker the app renders once it is up.
// Polling ends at the run deadline, or early when a StopOn button shows up
// (a hibernating page never changes on its own).
type AliveMarker struct {
	Markers  []string
	StopOn   []string
	Interval time.Duration
}

func (p *AliveMarker) Name() string { return "alive-marker" }

func (p *AliveMarker) Verdict() types.Verdict { return types.VerdictExplicitAlive }

func (p *AliveMarker) Check(ctx context.Context, env *Env) (Outcome, error) {
	env.Log.Info("Checking for success marker...")

	parent := ctx
	if remaining := env.Deadline.Sub(env.Clock.Now()); remaining > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, remaining)
		defer cancel()
	}

	var lastErr error
	for {
		frames, err := env.frames(ctx)
		if err != nil {
			lastErr = err
			env.Log.Debug("success marker check failed, will retry", zap.Error(err))
		} else {
			lastErr = nil
			if marker, frame, ok := findText(frames, p.Markers); ok {
				env.Log.Debug("found success marker", zap.String("marker", marker), zap.String("frame", frame.URL))
				return Matched, nil
			}
			if label, frame, _, ok := findButton(frames, p.StopOn); ok {
				env.Log.Debug("wake prompt visible, stopping marker poll",
					zap.String("label", label), zap.String("frame", frame.URL))
				return NotMatched, nil
			}
		}

		if env.Clock.Now().Add(p.Interval).After(env.Deadline) || ctx.Err() != nil {
			break
		}
		if err := env.Clock.Sleep(ctx, p.Interval); err != nil {
			if parent.Err() != nil {
				return Errored, err
			}
			break
		}
	}

	if lastErr != nil {
		return Errored, lastErr
	}
	return NotMatched, nil
}

// WakeButton clicks the hosting platform's hibernation button and waits up
// to Grace for the alive markers.
type WakeButton struct {
	Labels   []string
	Markers  []string
	Interval time.Duration
	Grace    time.Duration
}

func (p *WakeButton) Name() string { return "wake-button" }

func (p *WakeButton) Verdict() types.Verdict { return types.VerdictWoken }

func (p *WakeButton) Check(ctx context.Context, env *Env) (Outcome, error) {
	frames, err := env.frames(ctx)
	if err != nil {
		return Errored, fmt.Errorf("failed to scan for wake up button: %w", err)
	}

	label, frame, index, ok := findButton(frames, p.Labels)
	if !ok {
		env.Log.Debug("No wake up button found")
		return NotMatched, nil
	}

	env.Log.Warn("FOUND WAKE UP BUTTON! Clicking it...",
		zap.String("label", label), zap.String("frame", frame.URL))
	if err := env.click(ctx, frame.ID, index); err != nil {
		return Errored, fmt.Errorf("failed to click wake up button: %w", err)
	}
	env.clicked = true

	env.Log.Info("Waiting for app to wake up (this may take a while)...",
		zap.Duration("grace", p.Grace))

	deadline := env.Clock.Now().Add(p.Grace)
	for {
		step := p.Interval
		if remaining := deadline.Sub(env.Clock.Now()); remaining < step {
			step = remaining
		}
		if step > 0 {
			if err := env.Clock.Sleep(ctx, step); err != nil {
				return Errored, err
			}
		}

		frames, err := env.frames(ctx)
		if err != nil {
			env.Log.Debug("wake up check failed", zap.Error(err))
		} else if _, _, ok := findText(frames, p.Markers); ok {
			return Matched, nil
		}

		if !env.Clock.Now().Before(deadline) {
			return NotMatched, nil
		}
	}
}

// Fallback is a single scan for weaker evidence of a running app
type Fallback struct {
	Markers []string
}

func (p *Fallback) Name() string { return "fallback" }

func (p *Fallback) Verdict() types.Verdict { return types.VerdictImplicitAlive }

func (p *Fallback) Check(ctx context.Context, env *Env) (Outcome, error) {
	frames, err := env.frames(ctx)
	if err != nil {
		return Errored, fmt.Errorf("final verification scan failed: %w", err)
	}
	if marker, frame, ok := findText(frames, p.Markers); ok {
		env.Log.Debug("found fallback marker", zap.String("marker", marker), zap.String("frame", frame.URL))
		return Matched, nil
	}
	return NotMatched, nil
}

func findText(frames []types.Frame, patterns []string) (string, types.Frame, bool) {
	for _, f := range frames {
		if m, ok := markers.Find(f.Text, patterns); ok {
			return m, f, true
		}
	}
	return "", types.Frame{}, false
}

func findButton(frames []types.Frame, labels []string) (string, types.Frame, int, bool) {
	if len(labels) == 0 {
		return "", types.Frame{}, -1, false
	}
	for _, f := range frames {
		for i, b := range f.Buttons {
			if m, ok := markers.Find(b, labels); ok {
				return m, f, i, true
			}
		}
	}
	return "", types.Frame{}, -1, false
}
