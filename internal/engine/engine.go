// File: internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scriptfill/api/schemas"
	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
	"github.com/xkilldash9x/scriptfill/internal/config"
	"github.com/xkilldash9x/scriptfill/internal/detect"
	"github.com/xkilldash9x/scriptfill/internal/insert"
)

// ErrNoCandidate is returned when neither detection nor the focus fallbacks
// produce a target.
var ErrNoCandidate = errors.New("engine: no input candidate")

// Options configures an Engine.
type Options struct {
	HistoryCapacity int
	WidgetRootID    string
	Weights         detect.Weights
	Rules           *detect.Rules
	InsertMode      insert.Mode
	SettleDelay     time.Duration
	Debug           bool
}

// DefaultOptions returns the built-in detection settings.
func DefaultOptions() Options {
	return Options{
		HistoryCapacity: detect.DefaultHistoryCapacity,
		Weights:         detect.DefaultWeights(),
		Rules:           detect.DefaultRules(),
		InsertMode:      insert.ModeReplace,
		SettleDelay:     insert.DefaultSettleDelay,
	}
}

// OptionsFromConfig maps the detection config section onto Options.
func OptionsFromConfig(cfg config.DetectionConfig) (Options, error) {
	mode, err := insert.ParseMode(cfg.InsertMode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		HistoryCapacity: cfg.HistoryCapacity,
		WidgetRootID:    cfg.WidgetRootID,
		Weights:         cfg.Weights,
		Rules:           cfg.Rules(),
		InsertMode:      mode,
		SettleDelay:     cfg.SettleDelay,
		Debug:           cfg.Debug,
	}, nil
}

// Engine detects the chat composer of one document and fills it. Each
// Engine owns its focus history and debug flag; create one per page.
type Engine struct {
	doc    dom.Document
	logger *zap.Logger

	classifier *detect.Classifier
	finder     *detect.Finder
	scorer     *detect.Scorer
	history    *detect.History
	inserter   *insert.Inserter
	mode       insert.Mode
	debug      atomic.Bool

	mu          sync.Mutex
	unsubscribe func()
}

// New creates an Engine for doc. Call Start to begin tracking focus.
func New(doc dom.Document, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("engine")
	if opts.Rules == nil {
		opts.Rules = detect.DefaultRules()
	}
	if opts.Weights == (detect.Weights{}) {
		opts.Weights = detect.DefaultWeights()
	}
	if opts.InsertMode == "" {
		opts.InsertMode = insert.ModeReplace
	}
	classifier := detect.NewClassifier(opts.Rules)
	e := &Engine{
		doc:        doc,
		logger:     logger,
		classifier: classifier,
		finder:     detect.NewFinder(opts.WidgetRootID),
		scorer:     detect.NewScorer(opts.Weights, classifier),
		history:    detect.NewHistory(opts.HistoryCapacity),
		inserter:   insert.New(logger, opts.SettleDelay),
		mode:       opts.InsertMode,
	}
	e.debug.Store(opts.Debug)
	return e
}

// Start attaches the focus listener that feeds the history. Calling Start on
// a started Engine does nothing.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsubscribe != nil {
		return
	}
	e.unsubscribe = e.doc.OnFocusIn(e.onFocusIn)
	e.logger.Debug("Focus tracking started")
}

// Close detaches the focus listener. The Engine can be started again.
func (e *Engine) Close() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
		e.logger.Debug("Focus tracking stopped")
	}
}

func (e *Engine) onFocusIn(el dom.Element) {
	if el == nil || e.finder.InWidget(el) {
		return
	}
	if e.history.OnFocus(el) && e.debug.Load() {
		e.logger.Debug("Recorded focus", zap.String("target", el.Locator()))
	}
}

// History exposes the focus history, mainly for diagnostics and tests.
func (e *Engine) History() *detect.History { return e.history }

func (e *Engine) SetDebug(on bool) { e.debug.Store(on) }
func (e *Engine) Debug() bool      { return e.debug.Load() }

// pass is the result of one detection pass over fresh DOM state.
type pass struct {
	ctx      detect.ScoreContext
	ranked   []detect.Ranked
	rejected []detect.Candidate
	winner   int
	fallback dom.Element
}

func (e *Engine) run() pass {
	p := pass{
		ctx: detect.ScoreContext{
			Active:   e.doc.ActiveElement(),
			History:  e.history.Entries(),
			Capacity: e.history.Capacity(),
			Viewport: e.doc.Viewport(),
		},
		winner: -1,
	}

	var included []detect.Candidate
	for _, el := range e.finder.FindAll(e.doc) {
		c := detect.Candidate{Element: el, Verdict: e.classifier.Classify(el)}
		if c.Verdict.MessageLike {
			included = append(included, c)
		} else {
			p.rejected = append(p.rejected, c)
		}
	}

	p.ranked = e.scorer.Rank(included, p.ctx)
	if best, ok := detect.Best(p.ranked); ok {
		for i := range p.ranked {
			if p.ranked[i].Element == best.Element {
				p.winner = i
				break
			}
		}
	} else {
		p.fallback = e.fallbackTarget(p.ctx.Active)
	}

	if e.debug.Load() {
		for _, r := range p.ranked {
			e.logger.Debug("Candidate scored",
				zap.String("target", r.Element.Locator()),
				zap.String("reason", string(r.Verdict.Reason)),
				zap.Float64("score", r.Breakdown.Total),
				zap.Bool("visible", r.Breakdown.Visible))
		}
		for _, c := range p.rejected {
			e.logger.Debug("Candidate rejected",
				zap.String("target", c.Element.Locator()),
				zap.String("reason", string(c.Verdict.Reason)),
				zap.String("match", c.Verdict.Match))
		}
	}
	return p
}

// usableFallback reports whether el may receive text when detection found
// nothing: it must be writable, outside the widget and not actively
// rejected by a rule.
func (e *Engine) usableFallback(el dom.Element) bool {
	if el == nil || !el.IsConnected() || e.finder.InWidget(el) {
		return false
	}
	return !e.classifier.Classify(el).Excluded()
}

func (e *Engine) fallbackTarget(active dom.Element) dom.Element {
	if e.usableFallback(active) {
		return active
	}
	return e.history.Best(e.usableFallback)
}

// SelectTarget returns the element InsertBest would write to.
func (e *Engine) SelectTarget() (dom.Element, error) {
	p := e.run()
	if p.winner >= 0 {
		return p.ranked[p.winner].Element, nil
	}
	if p.fallback != nil {
		return p.fallback, nil
	}
	return nil, ErrNoCandidate
}

// InsertBest fills text into the selected target. Failures are reported in
// the result, never as an error.
func (e *Engine) InsertBest(ctx context.Context, text string) schemas.FillResult {
	p := e.run()
	var (
		target dom.Element
		score  float64
	)
	switch {
	case p.winner >= 0:
		target, score = p.ranked[p.winner].Element, p.ranked[p.winner].Breakdown.Total
	case p.fallback != nil:
		target = p.fallback
		e.logger.Debug("No candidate detected, using focus fallback", zap.String("target", target.Locator()))
	default:
		e.logger.Info("No input candidate found")
		return schemas.FillResult{
			Status:   schemas.StatusNoCandidate,
			Notice:   insert.FailureNotice,
			Fallback: text,
			Error:    ErrNoCandidate.Error(),
		}
	}

	res := e.inserter.Insert(ctx, target, text, e.mode)
	out := schemas.FillResult{
		Strategy: res.Strategy.String(),
		Target:   target.Locator(),
		Score:    score,
	}
	if !res.OK {
		out.Status = schemas.StatusFailed
		out.Notice = res.Notice
		out.Fallback = res.Fallback
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		return out
	}
	out.Status = schemas.StatusFilled
	e.logger.Info("Script inserted", zap.String("target", out.Target), zap.String("strategy", out.Strategy))
	return out
}

// Report runs a detection pass and describes every candidate. It does not
// modify the page.
func (e *Engine) Report() schemas.DetectionReport {
	p := e.run()
	r := schemas.DetectionReport{
		GeneratedAt: time.Now().UTC(),
		Viewport:    schemas.Viewport{Width: p.ctx.Viewport.Width, Height: p.ctx.Viewport.Height},
		Candidates:  make([]schemas.CandidateReport, 0, len(p.ranked)),
		Selected:    p.winner,
	}
	for _, rk := range p.ranked {
		cr := schemas.CandidateReport{
			Locator:     rk.Element.Locator(),
			Tag:         rk.Element.TagName(),
			Reason:      string(rk.Verdict.Reason),
			Match:       rk.Verdict.Match,
			MessageLike: rk.Verdict.MessageLike,
			Visible:     rk.Breakdown.Visible,
			Area:        rk.Breakdown.Geometry.Area,
			Score:       rk.Breakdown.Total,
		}
		for _, c := range rk.Breakdown.Contributions {
			cr.Contributions = append(cr.Contributions, schemas.Contribution{Signal: c.Signal, Points: c.Points})
		}
		r.Candidates = append(r.Candidates, cr)
	}
	for _, c := range p.rejected {
		r.Rejected = append(r.Rejected, schemas.RejectedReport{
			Locator: c.Element.Locator(),
			Reason:  string(c.Verdict.Reason),
			Match:   c.Verdict.Match,
		})
	}
	if p.winner >= 0 {
		r.Tied = tied(p.ranked, p.winner)
	} else if p.fallback != nil {
		r.Fallback = p.fallback.Locator()
	}
	for _, h := range p.ctx.History {
		r.History = append(r.History, h.Locator())
	}
	return r
}

// tied reports whether another candidate competing with the winner has the
// same score.
func tied(ranked []detect.Ranked, winner int) bool {
	w := ranked[winner].Breakdown
	for i, r := range ranked {
		if i != winner && r.Breakdown.Visible == w.Visible && r.Breakdown.Total == w.Total {
			return true
		}
	}
	return false
}
