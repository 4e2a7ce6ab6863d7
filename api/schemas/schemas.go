package schemas

import "time"

// Script is a canned reply that can be filled into a chat composer.
type Script struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Note      string    `json:"note,omitempty" yaml:"note,omitempty"`
	Group     string    `json:"group,omitempty" yaml:"group,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// FillStatus is the outcome of a fill request.
type FillStatus string

const (
	StatusFilled      FillStatus = "FILLED"
	StatusNoCandidate FillStatus = "NO_CANDIDATE"
	StatusFailed      FillStatus = "FAILED"
)

// FillResult reports a fill request to the shell. On failure Notice is the
// message to show and Fallback the text to offer for manual copying.
type FillResult struct {
	Status   FillStatus `json:"status"`
	Strategy string     `json:"strategy,omitempty"`
	Target   string     `json:"target,omitempty"`
	Score    float64    `json:"score,omitempty"`
	Notice   string     `json:"notice,omitempty"`
	Fallback string     `json:"fallback,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Contribution is one signal's share of a candidate score.
type Contribution struct {
	Signal string  `json:"signal"`
	Points float64 `json:"points"`
}

// CandidateReport describes one scored input candidate.
type CandidateReport struct {
	Locator       string         `json:"locator"`
	Tag           string         `json:"tag"`
	Reason        string         `json:"reason"`
	Match         string         `json:"match,omitempty"`
	MessageLike   bool           `json:"message_like"`
	Visible       bool           `json:"visible"`
	Area          float64        `json:"area"`
	Score         float64        `json:"score"`
	Contributions []Contribution `json:"contributions,omitempty"`
}

// RejectedReport describes an element the classifier excluded.
type RejectedReport struct {
	Locator string `json:"locator"`
	Reason  string `json:"reason"`
	Match   string `json:"match,omitempty"`
}

// DetectionReport is the result of one detection pass. Selected is the
// index into Candidates of the chosen target, or -1. Tied is set when
// another competing candidate has the selected score.
type DetectionReport struct {
	Source      string            `json:"source,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	Viewport    Viewport          `json:"viewport"`
	Candidates  []CandidateReport `json:"candidates"`
	Rejected    []RejectedReport  `json:"rejected,omitempty"`
	Selected    int               `json:"selected"`
	Fallback    string            `json:"fallback,omitempty"`
	Tied        bool              `json:"tied"`
	History     []string          `json:"history,omitempty"`
}

// Viewport is the layout viewport size in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SelectedCandidate returns the chosen candidate, if any.
func (r DetectionReport) SelectedCandidate() (CandidateReport, bool) {
	if r.Selected < 0 || r.Selected >= len(r.Candidates) {
		return CandidateReport{}, false
	}
	return r.Candidates[r.Selected], true
}
