package probe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/keepalive/internal/clock"
	"github.com/ibeckermayer/keepalive/internal/markers"
	"github.com/ibeckermayer/keepalive/internal/types"
)

// defaultScanTimeout bounds a single page query and the diagnostic HTML
// capture on the failure path
const defaultScanTimeout = 10 * time.Second

// Config holds what a single run needs
type Config struct {
	URL          string
	Timeout      time.Duration // navigation plus marker polling
	PollInterval time.Duration
	WakeGrace    time.Duration // wait after clicking the wake button
	ScanTimeout  time.Duration // one frame scan, click or HTML capture
	SnippetLimit int

	Alive    []string
	Wake     []string
	Fallback []string
}

// Prober runs the probes against one target
type Prober struct {
	cfg    Config
	launch Launcher
	clock  clock.Clock
	log    *zap.Logger
	probes []Probe
}

// Option customizes a Prober
type Option func(*Prober)

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(p *Prober) { p.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Prober) { p.log = l }
}

// WithProbes replaces the default probe list
func WithProbes(probes ...Probe) Option {
	return func(p *Prober) { p.probes = probes }
}

// New creates a prober. Without WithProbes it uses DefaultProbes(cfg).
func New(cfg Config, launch Launcher, opts ...Option) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = defaultScanTimeout
	}
	if cfg.SnippetLimit <= 0 {
		cfg.SnippetLimit = 500
	}

	p := &Prober{
		cfg:    cfg,
		launch: launch,
		clock:  clock.Real(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.probes == nil {
		p.probes = DefaultProbes(cfg)
	}
	return p
}

// DefaultProbes returns the ordered checks of a run: explicit alive marker,
// wake button, then the fallback scan.
func DefaultProbes(cfg Config) []Probe {
	return []Probe{
		&AliveMarker{
			Markers:  cfg.Alive,
			StopOn:   cfg.Wake,
			Interval: cfg.PollInterval,
		},
		&WakeButton{
			Labels:   cfg.Wake,
			Markers:  cfg.Alive,
			Interval: cfg.PollInterval,
			Grace:    cfg.WakeGrace,
		},
		&Fallback{
			Markers: append(append([]string(nil), cfg.Alive...), cfg.Fallback...),
		},
	}
}

// Config returns the prober's configuration
func (p *Prober) Config() Config { return p.cfg }

// Run performs one probe run. The error is nil exactly when the verdict is
// not VerdictFailed; it is ErrUnverified when every probe came up empty.
func (p *Prober) Run(ctx context.Context) (res types.Result, err error) {
	start := p.clock.Now()
	res = types.Result{
		TargetURL: p.cfg.URL,
		Verdict:   types.VerdictFailed,
		StartedAt: start,
	}
	defer func() {
		res.Duration = p.clock.Now().Sub(start)
	}()

	p.log.Info("Launching browser to check", zap.String("url", p.cfg.URL))
	sess, err := p.launch(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			p.log.Debug("closing browser failed", zap.Error(cerr))
		}
	}()

	p.log.Info("Navigating to page...")
	navCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	navErr := sess.Navigate(navCtx, p.cfg.URL)
	cancel()
	if navErr != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		p.log.Info("Navigation did not complete, checking page anyway", zap.Error(navErr))
	}

	env := &Env{
		Session:  sess,
		Clock:    p.clock,
		Log:      p.log,
		Deadline: start.Add(p.cfg.Timeout),

		ScanTimeout: p.cfg.ScanTimeout,
	}

	for _, pr := range p.probes {
		outcome, perr := pr.Check(ctx, env)
		res.Clicked = env.clicked
		p.log.Debug("probe finished", zap.String("probe", pr.Name()), zap.Stringer("outcome", outcome))

		switch outcome {
		case Matched:
			res.Verdict = pr.Verdict()
			res.Probe = pr.Name()
			p.log.Info(successMessage(res.Verdict))
			return res, nil
		case Errored:
			p.log.Debug("probe failed, continuing with next check",
				zap.String("probe", pr.Name()), zap.Error(perr))
		}

		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}

	snapCtx, cancel := context.WithTimeout(ctx, p.cfg.ScanTimeout)
	defer cancel()
	html, herr := sess.HTML(snapCtx)
	if herr != nil {
		p.log.Debug("could not capture page content", zap.Error(herr))
	}
	res.Document = html
	res.Snippet = markers.Truncate(html, p.cfg.SnippetLimit)

	p.log.Error("FAILURE: Could NOT verify app state. Dumping content snippet:")
	p.log.Error(res.Snippet)
	return res, ErrUnverified
}

func successMessage(v types.Verdict) string {
	switch v {
	case types.VerdictExplicitAlive:
		return "SUCCESS: App is explicitly reporting alive!"
	case types.VerdictWoken:
		return "SUCCESS: App woke up and loaded!"
	default:
		return "SUCCESS: App seems to be running normal UI."
	}
}
