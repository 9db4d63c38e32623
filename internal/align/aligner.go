package align

import (
	"github.com/ironsheep/cosmx-align/internal/imaging"
	"github.com/ironsheep/cosmx-align/internal/logger"
)

// Options configures an Aligner.
type Options struct {
	Coverage CoverageThresholds
	Search   SearchOptions
	Refine   RefineOptions

	// FallbackThreshold: a full-mode best below this triggers a second pass
	// with template matching.
	FallbackThreshold float64

	// ReviewThreshold: final scores below this are flagged for manual review.
	ReviewThreshold float64
}

// DefaultOptions returns the default thresholds (fallback 0.15, review 0.4).
// Both are empirical and worth recalibrating per dataset.
func DefaultOptions() Options {
	return Options{
		Coverage:          DefaultCoverageThresholds(),
		Search:            DefaultSearchOptions(),
		Refine:            DefaultRefineOptions(),
		FallbackThreshold: 0.15,
		ReviewThreshold:   0.4,
	}
}

// Result is the full outcome of aligning one slide's masks.
type Result struct {
	Verdict CoverageVerdict

	// Mode is the strategy of the pass that produced Best.
	Mode Mode

	// Candidates holds 16 candidates, or 32 when the fallback pass ran, in
	// enumeration order.
	Candidates []Candidate

	// Best is the selected candidate, after refinement when requested.
	Best Candidate

	FallbackRan  bool
	FallbackUsed bool

	// Refinement is nil unless refinement was requested.
	Refinement *RefineResult

	NeedsReview bool
}

// CoverageMode is the verdict as reported to consumers: partial when the
// fallback pass won, the classifier's verdict otherwise.
func (r *Result) CoverageMode() Mode {
	if r.FallbackUsed {
		return ModePartial
	}
	return r.Verdict.Mode
}

// Aligner runs classification, search, fallback and refinement.
type Aligner struct {
	opts Options
	log  logger.ILogger
}

// NewAligner returns an Aligner. A nil log discards messages.
func NewAligner(opts Options, log logger.ILogger) *Aligner {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Aligner{opts: opts, log: log}
}

// Options returns the options the aligner was built with.
func (a *Aligner) Options() Options {
	return a.opts
}

// Align finds the transform placing cosmx onto he.
//
// override forces the coverage mode (ModeAuto classifies). When the
// full-mode best scores below the fallback threshold, all 16 orientations are
// searched again with template matching and the better of the two bests is
// kept, the first pass winning ties.
func (a *Aligner) Align(he, cosmx *imaging.Mask, override Mode, refine bool) *Result {
	verdict := Classify(he, cosmx, override, a.opts.Coverage)
	a.log.Debugf("coverage %s (tissue ratio %.3f, size ratio %.3f, override %t)",
		verdict.Mode, verdict.TissueAreaRatio, verdict.ImageSizeRatio, verdict.Overridden)

	first := search(he, cosmx, verdict.SearchMode(), a.opts.Search, 0)
	res := &Result{
		Verdict:    verdict,
		Mode:       first.Mode,
		Candidates: first.Candidates,
		Best:       first.Best,
	}
	a.log.Debugf("%s pass best: %s score %.4f", first.Mode, first.Best.Orientation(), first.Best.CombinedScore)

	if first.Mode == ModeFull && first.Best.CombinedScore < a.opts.FallbackThreshold {
		a.log.Infof("full-mode score %.4f below %.2f, retrying with template matching",
			first.Best.CombinedScore, a.opts.FallbackThreshold)

		second := search(he, cosmx, ModePartial, a.opts.Search, len(first.Candidates))
		res.FallbackRan = true
		res.Candidates = append(append([]Candidate{}, first.Candidates...), second.Candidates...)
		if second.Best.CombinedScore > first.Best.CombinedScore {
			res.Best = second.Best
			res.Mode = second.Mode
			res.FallbackUsed = true
		}
		a.log.Debugf("fallback best %.4f, used %t", second.Best.CombinedScore, res.FallbackUsed)
	}

	if refine {
		r := Refine(he, cosmx, res.Best, a.opts.Refine)
		res.Refinement = &r
		res.Best = r.Apply(res.Best)
		a.log.Debugf("refined to (%d,%d) overlap %.4f", r.DX, r.DY, r.OverlapScore)
	}

	res.NeedsReview = res.Best.CombinedScore < a.opts.ReviewThreshold
	return res
}
