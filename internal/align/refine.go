package align

import (
	"github.com/ironsheep/cosmx-align/internal/imaging"
)

// RefineOptions bounds the local translation search.
type RefineOptions struct {
	// Radius is the half-width of the square neighbourhood, in pixels.
	Radius int `yaml:"radius"`

	// Step is the spacing between tested offsets, in pixels.
	Step int `yaml:"step"`
}

// DefaultRefineOptions searches +/-30 px in 3 px steps.
func DefaultRefineOptions() RefineOptions {
	return RefineOptions{Radius: 30, Step: 3}
}

// RefineResult is the outcome of Refine.
type RefineResult struct {
	DX           int     `json:"dx"`
	DY           int     `json:"dy"`
	OverlapScore float64 `json:"overlap_score"`

	// Score is the combined score with the candidate's match score and the
	// refined overlap. It is never lower than the input's combined score.
	Score float64 `json:"score"`

	// Improved is set when a neighbour beat the starting offset.
	Improved bool `json:"improved"`
}

// Apply returns c moved to the refined offset with its overlap and combined
// scores updated.
func (r RefineResult) Apply(c Candidate) Candidate {
	c.DX, c.DY = r.DX, r.DY
	c.OverlapScore = r.OverlapScore
	c.CombinedScore = r.Score
	return c
}

// Refine searches the square neighbourhood around best's translation for a
// higher overlap, holding orientation and scale fixed. Overlap is measured
// the way the candidate's method measures it (see OverlapAt).
//
// The starting offset is the incumbent; a neighbour replaces it only with a
// strictly higher overlap, so the result never regresses. Offsets with a
// negative coordinate are skipped. Failed candidates are returned unchanged.
func Refine(he, cosmx *imaging.Mask, best Candidate, opts RefineOptions) RefineResult {
	res := RefineResult{
		DX:           best.DX,
		DY:           best.DY,
		OverlapScore: best.OverlapScore,
		Score:        best.CombinedScore,
	}
	if best.Failed() || opts.Radius <= 0 {
		return res
	}
	step := opts.Step
	if step <= 0 {
		step = 1
	}

	placed := Prepare(cosmx, best, he.Size())
	for oy := -opts.Radius; oy <= opts.Radius; oy += step {
		for ox := -opts.Radius; ox <= opts.Radius; ox += step {
			if ox == 0 && oy == 0 {
				continue
			}
			x, y := best.DX+ox, best.DY+oy
			if x < 0 || y < 0 {
				continue
			}
			if iou := OverlapAt(he, placed, best, x, y); iou > res.OverlapScore {
				res.DX, res.DY, res.OverlapScore = x, y, iou
				res.Improved = true
			}
		}
	}

	if res.Improved {
		res.Score = CombinedScore(best.MatchScore, res.OverlapScore)
	}
	return res
}
