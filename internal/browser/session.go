package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ibeckermayer/keepalive/internal/probe"
	"github.com/ibeckermayer/keepalive/internal/types"
)

// Session is one Chrome instance with a single tab
type Session struct {
	ctx         context.Context // tab context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	log         *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Launch starts Chrome and opens a blank tab
func Launch(ctx context.Context, cfg Config, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, Options(cfg)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		log:         log,
	}, nil
}

// Launcher adapts Launch to probe.Launcher
func Launcher(cfg Config, log *zap.Logger) probe.Launcher {
	return func(ctx context.Context) (probe.Session, error) {
		s, err := Launch(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the document to be ready
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// Frames reads every frame of the page. Frames that detach or throw while
// being read are skipped.
func (s *Session) Frames(ctx context.Context) ([]types.Frame, error) {
	var frames []types.Frame

	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to read frame tree: %w", err)
		}

		for _, f := range flatten(tree) {
			var raw rawFrame
			if err := evaluate(ctx, f.ID, readFrameJS, &raw); err != nil {
				s.log.Debug("skipping frame", zap.String("frame", f.URL), zap.Error(err))
				continue
			}
			frames = append(frames, types.Frame{
				ID:      string(f.ID),
				URL:     f.URL,
				Text:    raw.Text,
				Buttons: raw.Buttons,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}

	return frames, nil
}

// Click clicks the index-th button of a frame, counted as in Frames
func (s *Session) Click(ctx context.Context, frameID string, index int) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked bool
		if err := evaluate(ctx, cdp.FrameID(frameID), clickButtonJS(index), &clicked); err != nil {
			return err
		}
		if !clicked {
			return fmt.Errorf("button %d is no longer in frame %s", index, frameID)
		}
		return nil
	}))
}

// HTML returns the outer HTML of the main document
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

// Close shuts the browser down. Calls after the first return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}

// evaluate runs expr in an isolated world of the frame and decodes the
// returned value into out
func evaluate(ctx context.Context, frameID cdp.FrameID, expr string, out any) error {
	worldID, err := page.CreateIsolatedWorld(frameID).WithWorldName(worldName).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create isolated world: %w", err)
	}

	res, exc, err := runtime.Evaluate(expr).
		WithContextID(worldID).
		WithReturnByValue(true).
		Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return exc
	}
	if out == nil || res == nil || len(res.Value) == 0 {
		return nil
	}

	return json.Unmarshal([]byte(res.Value), out)
}

func flatten(tree *page.FrameTree) []*cdp.Frame {
	if tree == nil || tree.Frame == nil {
		return nil
	}
	frames := []*cdp.Frame{tree.Frame}
	for _, child := range tree.ChildFrames {
		frames = append(frames, flatten(child)...)
	}
	return frames
}
