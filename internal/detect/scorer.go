// File: internal/detect/scorer.go
package detect

import (
	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

// Weights are the points of each scoring signal.
type Weights struct {
	Focused         float64 `mapstructure:"focused" yaml:"focused"`
	LastFocused     float64 `mapstructure:"last_focused" yaml:"last_focused"`
	HistoryStep     float64 `mapstructure:"history_step" yaml:"history_step"`
	Visible         float64 `mapstructure:"visible" yaml:"visible"`
	FullyOnScreen   float64 `mapstructure:"fully_on_screen" yaml:"fully_on_screen"`
	LowerHalf       float64 `mapstructure:"lower_half" yaml:"lower_half"`
	AreaInRange     float64 `mapstructure:"area_in_range" yaml:"area_in_range"`
	AreaTooSmall    float64 `mapstructure:"area_too_small" yaml:"area_too_small"`
	AreaTooLarge    float64 `mapstructure:"area_too_large" yaml:"area_too_large"`
	CenterProximity float64 `mapstructure:"center_proximity" yaml:"center_proximity"`
	KindTextarea    float64 `mapstructure:"kind_textarea" yaml:"kind_textarea"`
	KindEditable    float64 `mapstructure:"kind_editable" yaml:"kind_editable"`
	KindInput       float64 `mapstructure:"kind_input" yaml:"kind_input"`
	SearchPenalty   float64 `mapstructure:"search_penalty" yaml:"search_penalty"`

	// MinArea and MaxAreaRatio bound the "reasonable textbox" range; the
	// upper bound is a fraction of the viewport area.
	MinArea      float64 `mapstructure:"min_area" yaml:"min_area"`
	MaxAreaRatio float64 `mapstructure:"max_area_ratio" yaml:"max_area_ratio"`
}

func DefaultWeights() Weights {
	return Weights{
		Focused:         500,
		LastFocused:     300,
		HistoryStep:     40,
		Visible:         100,
		FullyOnScreen:   15,
		LowerHalf:       20,
		AreaInRange:     40,
		AreaTooSmall:    -40,
		AreaTooLarge:    -20,
		CenterProximity: 20,
		KindTextarea:    15,
		KindEditable:    10,
		KindInput:       5,
		SearchPenalty:   -200,
		MinArea:         400,
		MaxAreaRatio:    0.5,
	}
}

// Signal names used in score breakdowns.
const (
	SignalFocused         = "focused"
	SignalLastFocused     = "last-focused"
	SignalHistoryRank     = "history-rank"
	SignalVisible         = "visible"
	SignalFullyOnScreen   = "fully-on-screen"
	SignalMessageLike     = "message-like"
	SignalLowerHalf       = "lower-half"
	SignalAreaInRange     = "area-in-range"
	SignalAreaTooSmall    = "area-too-small"
	SignalAreaTooLarge    = "area-too-large"
	SignalCenterProximity = "center-proximity"
	SignalKind            = "kind"
	SignalSearchPenalty   = "search-keyword"
)

// Contribution is one signal's share of a score.
type Contribution struct {
	Signal string  `json:"signal"`
	Points float64 `json:"points"`
}

// Breakdown is a score with the signals that produced it.
type Breakdown struct {
	Total         float64        `json:"total"`
	Visible       bool           `json:"visible"`
	Geometry      Geometry       `json:"geometry"`
	Contributions []Contribution `json:"contributions"`
}

func (b *Breakdown) add(signal string, points float64) {
	if points == 0 {
		return
	}
	b.Total += points
	b.Contributions = append(b.Contributions, Contribution{Signal: signal, Points: points})
}

// ScoreContext is the page state a score is computed against.
type ScoreContext struct {
	Active   dom.Element
	History  []dom.Element
	Capacity int
	Viewport dom.Viewport
}

// Candidate is a classified element.
type Candidate struct {
	Element dom.Element
	Verdict Verdict
}

// Ranked is a scored candidate.
type Ranked struct {
	Candidate
	Breakdown Breakdown
}

// Scorer ranks candidates with an additive point model.
type Scorer struct {
	weights    Weights
	classifier *Classifier
}

func NewScorer(weights Weights, classifier *Classifier) *Scorer {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Scorer{weights: weights, classifier: classifier}
}

func (s *Scorer) Weights() Weights { return s.weights }

// Score computes el's score. It reads fresh DOM state and is deterministic
// for a given state.
func (s *Scorer) Score(el dom.Element, v Verdict, sc ScoreContext) Breakdown {
	w := s.weights
	vp := sc.Viewport
	b := Breakdown{Geometry: Measure(el, vp), Visible: IsVisible(el, vp)}

	if sc.Active != nil && sc.Active == el {
		b.add(SignalFocused, w.Focused)
	}
	for i, h := range sc.History {
		if h != el {
			continue
		}
		if i == 0 {
			b.add(SignalLastFocused, w.LastFocused)
		}
		if rank := sc.Capacity - i; rank > 0 {
			b.add(SignalHistoryRank, float64(rank)*w.HistoryStep)
		}
		break
	}
	if b.Visible {
		b.add(SignalVisible, w.Visible)
	}
	if IsFullyOnScreen(el, vp) {
		b.add(SignalFullyOnScreen, w.FullyOnScreen)
	}
	if v.MessageLike {
		b.add(SignalMessageLike, float64(v.Strength))
	}

	g := b.Geometry
	if b.Visible && g.VerticalPosition >= 0.5 {
		b.add(SignalLowerHalf, w.LowerHalf)
	}
	maxArea := w.MaxAreaRatio * vp.Width * vp.Height
	switch {
	case g.Area <= 0:
	case g.Area < w.MinArea:
		b.add(SignalAreaTooSmall, w.AreaTooSmall)
	case maxArea > 0 && g.Area > maxArea:
		b.add(SignalAreaTooLarge, w.AreaTooLarge)
	default:
		b.add(SignalAreaInRange, w.AreaInRange)
	}
	if half := vp.HalfDiagonal(); half > 0 && g.Area > 0 {
		if closeness := 1 - g.CenterDistance/half; closeness > 0 {
			b.add(SignalCenterProximity, w.CenterProximity*closeness)
		}
	}

	switch {
	case el.TagName() == "textarea":
		b.add(SignalKind, w.KindTextarea)
	case IsEditorLike(el):
		b.add(SignalKind, w.KindEditable)
	case el.TagName() == "input":
		b.add(SignalKind, w.KindInput)
	}
	if s.classifier.SearchMatch(el) != "" {
		b.add(SignalSearchPenalty, w.SearchPenalty)
	}
	return b
}

// Rank scores every candidate, keeping the input order.
func (s *Scorer) Rank(cands []Candidate, sc ScoreContext) []Ranked {
	out := make([]Ranked, len(cands))
	for i, c := range cands {
		out[i] = Ranked{Candidate: c, Breakdown: s.Score(c.Element, c.Verdict, sc)}
	}
	return out
}

// SelectBest returns the highest scoring candidate. Only visible candidates
// compete unless none is visible, in which case all do. Ties keep the
// earliest candidate. ok is false only for an empty input.
func (s *Scorer) SelectBest(cands []Candidate, sc ScoreContext) (Ranked, bool) {
	return Best(s.Rank(cands, sc))
}

// Best picks the winner of an already ranked list, with the same rules as
// SelectBest.
func Best(ranked []Ranked) (Ranked, bool) {
	if len(ranked) == 0 {
		return Ranked{}, false
	}
	anyVisible := false
	for _, r := range ranked {
		if r.Breakdown.Visible {
			anyVisible = true
			break
		}
	}
	bestIdx := -1
	for i, r := range ranked {
		if anyVisible && !r.Breakdown.Visible {
			continue
		}
		if bestIdx < 0 || r.Breakdown.Total > ranked[bestIdx].Breakdown.Total {
			bestIdx = i
		}
	}
	return ranked[bestIdx], true
}
