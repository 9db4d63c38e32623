// Package pipeline runs the per-slide alignment workflow: locate the two
// source images, load and mask them, search for the transform, and write the
// transform record (plus an optional debug overlay).
//
// Missing inputs are reported as skipped outcomes, not errors; only I/O
// failures on files that do exist are returned as errors. RunAll never lets
// one slide's failure stop its siblings.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ironsheep/cosmx-align/internal/align"
	"github.com/ironsheep/cosmx-align/internal/config"
	"github.com/ironsheep/cosmx-align/internal/imaging"
	"github.com/ironsheep/cosmx-align/internal/logger"
	"github.com/ironsheep/cosmx-align/internal/transform"
)

// Status tags an Outcome.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
)

// RunOptions are the per-invocation switches.
type RunOptions struct {
	// Mode overrides coverage classification; ModeAuto classifies.
	Mode align.Mode

	// Refine runs the local translation search on the winner.
	Refine bool

	// Debug writes the overlay image next to the record.
	Debug bool
}

// Outcome is the result of RunSlide.
type Outcome struct {
	SlideID string
	Status  Status

	// Reason explains a skip.
	Reason string

	// Set when processed.
	Record      *transform.Record
	Result      *align.Result
	Score       float64
	NeedsReview bool
}

// Slide holds a slide's loaded inputs.
type Slide struct {
	ID        string
	HEPath    string
	CosMxPath string
	HE        *imaging.WorkingImage
	CosMx     *imaging.WorkingImage
	HEMask    *imaging.Mask
	CosMxMask *imaging.Mask
}

// Runner aligns slides found under a Layout.
type Runner struct {
	layout  Layout
	cfg     *config.Config
	cache   *imaging.ImageCache
	aligner *align.Aligner
	log     logger.ILogger
	metrics *Metrics
}

// NewRunner returns a Runner. log and metrics may be nil.
func NewRunner(layout Layout, cfg *config.Config, log logger.ILogger, metrics *Metrics) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Runner{
		layout:  layout,
		cfg:     cfg,
		cache:   imaging.NewImageCache(),
		aligner: align.NewAligner(cfg.AlignOptions(), log),
		log:     log,
		metrics: metrics,
	}
}

// Layout returns the data layout the runner reads from.
func (r *Runner) Layout() Layout {
	return r.layout
}

// Load locates, decodes and masks both images of slideID. A missing file
// yields an error wrapping ErrInputMissing.
func (r *Runner) Load(slideID string) (*Slide, error) {
	hePath, err := r.layout.FindPrimary(slideID)
	if err != nil {
		return nil, err
	}
	cosmxPath, err := r.layout.FindSecondary(slideID)
	if err != nil {
		return nil, err
	}

	maxSize := r.cfg.Processing.MaxSize
	he, err := r.cache.Load(hePath, imaging.ModalityHE, maxSize)
	if err != nil {
		return nil, errors.Wrapf(err, "slide %s: H&E", slideID)
	}
	cosmx, err := r.cache.Load(cosmxPath, imaging.ModalityCosMx, maxSize)
	if err != nil {
		return nil, errors.Wrapf(err, "slide %s: CosMx", slideID)
	}

	return &Slide{
		ID:        slideID,
		HEPath:    hePath,
		CosMxPath: cosmxPath,
		HE:        he,
		CosMx:     cosmx,
		HEMask:    imaging.ExtractMask(he, r.cfg.Mask),
		CosMxMask: imaging.ExtractMask(cosmx, r.cfg.Mask),
	}, nil
}

// Classify loads slideID and returns its coverage verdict without searching.
func (r *Runner) Classify(slideID string, override align.Mode) (align.CoverageVerdict, error) {
	s, err := r.Load(slideID)
	if err != nil {
		return align.CoverageVerdict{}, err
	}
	return align.Classify(s.HEMask, s.CosMxMask, override, r.cfg.Coverage), nil
}

// RunSlide aligns one slide and writes its transform record.
func (r *Runner) RunSlide(ctx context.Context, slideID string, opts RunOptions) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	s, err := r.Load(slideID)
	if errors.Is(err, ErrInputMissing) {
		r.log.Infof("[SKIP] %s: %v", slideID, err)
		o := &Outcome{SlideID: slideID, Status: StatusSkipped, Reason: err.Error()}
		r.metrics.observe(o, 0)
		return o, nil
	}
	if err != nil {
		return nil, err
	}

	r.log.Infof("[Processing] %s (H&E %dx%d, CosMx %dx%d)", slideID,
		s.HE.Original.Width, s.HE.Original.Height, s.CosMx.Original.Width, s.CosMx.Original.Height)

	res := r.aligner.Align(s.HEMask, s.CosMxMask, opts.Mode, opts.Refine)
	rec := transform.Build(slideID, res, s.HE, s.CosMx, r.cfg.Processing.MaxSize)

	if opts.Debug || r.cfg.Output.Debug {
		if err := r.writeDebug(s, res); err != nil {
			return nil, errors.Wrapf(err, "slide %s", slideID)
		}
	}
	if err := transform.Write(r.layout.TransformPath(slideID), rec); err != nil {
		return nil, errors.Wrapf(err, "slide %s", slideID)
	}

	best := res.Best
	r.log.Infof("[Result] %s: rot=%d flipX=%t flipY=%t scale=%.3f score=%.4f mode=%s",
		slideID, best.Rotation, best.FlipX, best.FlipY, best.Scale, best.CombinedScore, res.CoverageMode())
	if res.NeedsReview {
		r.log.Infof("[Review] %s scored %.4f, below %.2f", slideID, best.CombinedScore, r.cfg.Search.ReviewThreshold)
	}

	o := &Outcome{
		SlideID:     slideID,
		Status:      StatusProcessed,
		Record:      rec,
		Result:      res,
		Score:       best.CombinedScore,
		NeedsReview: res.NeedsReview,
	}
	r.metrics.observe(o, time.Since(start).Seconds())
	return o, nil
}

func (r *Runner) writeDebug(s *Slide, res *align.Result) error {
	best := res.Best
	placed := align.Prepare(s.CosMxMask, best, s.HEMask.Size())
	lines := []string{
		fmt.Sprintf("Rot:%d FlipX:%t FlipY:%t", best.Rotation, best.FlipX, best.FlipY),
		fmt.Sprintf("Pos:(%d,%d) Scale:%.2f Score:%.3f", best.DX, best.DY, best.Scale, best.CombinedScore),
		fmt.Sprintf("Mode:%s Method:%s", res.CoverageMode(), best.Method),
	}
	img := imaging.RenderOverlay(s.HEMask, placed, best.DX, best.DY, lines)
	return imaging.SavePNG(r.layout.DebugPath(s.ID), img)
}

// ReviewEntry names a processed slide scoring below the review threshold.
type ReviewEntry struct {
	SlideID string  `json:"slide_id"`
	Score   float64 `json:"score"`
}

// Summary reports a batch run.
type Summary struct {
	Total        int           `json:"total"`
	Processed    int           `json:"processed"`
	Skipped      int           `json:"skipped"`
	Failed       []string      `json:"failed"`
	AverageScore float64       `json:"average_score"`
	NeedsReview  []ReviewEntry `json:"needs_review"`
}

// RunAll aligns every slide listed by the layout, in sorted order. Per-slide
// failures are logged and counted. Cancelling ctx stops the run between
// slides and returns the partial summary with ctx's error.
func (r *Runner) RunAll(ctx context.Context, opts RunOptions) (*Summary, error) {
	ids, err := r.layout.ListSlides()
	if err != nil {
		return nil, err
	}
	r.log.Infof("[Batch] %d CosMx files", len(ids))

	sum := &Summary{Total: len(ids), Failed: []string{}, NeedsReview: []ReviewEntry{}}
	var total float64

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r.log.Infof("[%d/%d] %s", i+1, len(ids), id)

		o, err := r.RunSlide(ctx, id, opts)
		r.evict(id)
		if err != nil {
			r.log.Errorf("[ERROR] %s: %v", id, err)
			r.metrics.failed()
			sum.Failed = append(sum.Failed, id)
			continue
		}

		switch o.Status {
		case StatusSkipped:
			sum.Skipped++
		case StatusProcessed:
			sum.Processed++
			total += o.Score
			if o.NeedsReview {
				sum.NeedsReview = append(sum.NeedsReview, ReviewEntry{SlideID: id, Score: o.Score})
			}
		}
	}

	if sum.Processed > 0 {
		sum.AverageScore = total / float64(sum.Processed)
	}
	return sum, nil
}

// evict drops a finished slide's images so batch memory stays flat.
func (r *Runner) evict(slideID string) {
	if p, err := r.layout.FindPrimary(slideID); err == nil {
		r.cache.Evict(p)
	}
	if p, err := r.layout.FindSecondary(slideID); err == nil {
		r.cache.Evict(p)
	}
}
