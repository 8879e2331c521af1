package store

import (
	"time"

	"github.com/ibeckermayer/keepalive/internal/types"
)

// Run is one recorded probe run
type Run struct {
	ID        int64         `json:"id"`
	TargetURL string        `json:"target_url"`
	Verdict   types.Verdict `json:"verdict"`
	Probe     string        `json:"probe"`
	Clicked   bool          `json:"clicked"`
	Snippet   string        `json:"snippet"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RunFromResult builds the record of a finished run. runErr is the error the
// run returned, if any.
func RunFromResult(res types.Result, runErr error) Run {
	r := Run{
		TargetURL: res.TargetURL,
		Verdict:   res.Verdict,
		Probe:     res.Probe,
		Clicked:   res.Clicked,
		Snippet:   res.Snippet,
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}
