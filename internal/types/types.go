package types

import "time"

// Verdict is the outcome of one probe run
type Verdict string

const (
	VerdictExplicitAlive Verdict = "explicit_alive"
	VerdictWoken         Verdict = "woken"
	VerdictImplicitAlive Verdict = "implicit_alive"
	VerdictFailed        Verdict = "failed"
)

// OK reports whether the verdict counts as a live application
func (v Verdict) OK() bool {
	switch v {
	case VerdictExplicitAlive, VerdictWoken, VerdictImplicitAlive:
		return true
	}
	return false
}

// Frame is a snapshot of one document in the page's frame tree
type Frame struct {
	ID      string   `json:"id"`
	URL     string   `json:"url"`
	Text    string   `json:"text"`
	Buttons []string `json:"buttons"` // visible labels, in document order
}

// Result describes a finished probe run
type Result struct {
	TargetURL string        `json:"target_url"`
	Verdict   Verdict       `json:"verdict"`
	Probe     string        `json:"probe,omitempty"` // name of the probe that matched
	Clicked   bool          `json:"clicked"`
	Snippet   string        `json:"snippet,omitempty"`
	Document  string        `json:"-"` // full HTML, only captured on failure
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
