package align

import (
	"sort"

	"github.com/ironsheep/cosmx-align/internal/imaging"
)

// Score weights. Every candidate is scored with the same weights regardless
// of which matcher produced its match score.
const (
	MatchWeight   = 0.7
	OverlapWeight = 0.3
)

// Method identifies the matcher that produced a candidate.
type Method string

const (
	MethodPhaseCorrelation       Method = "phase_correlation"
	MethodTemplateMatching       Method = "template_matching"
	MethodTemplateMatchingFailed Method = "template_matching_failed"
)

// Candidate is one scored orientation hypothesis.
//
// DX/DY place the top-left corner of the oriented, scaled secondary mask on
// the primary's working raster. Index is the candidate's position in the
// canonical enumeration (0-15 for the first pass, 16-31 for the fallback
// pass) and decides ties.
type Candidate struct {
	Index         int     `json:"-"`
	Rotation      int     `json:"rotation"`
	FlipX         bool    `json:"flip_x"`
	FlipY         bool    `json:"flip_y"`
	DX            int     `json:"dx"`
	DY            int     `json:"dy"`
	Scale         float64 `json:"scale"`
	MatchScore    float64 `json:"match_score"`
	OverlapScore  float64 `json:"overlap_score"`
	CombinedScore float64 `json:"combined_score"`
	Method        Method  `json:"method"`
}

// Orientation returns the candidate's rotation/mirror variant.
func (c Candidate) Orientation() imaging.Orientation {
	return imaging.Orientation{Rotation: c.Rotation, FlipX: c.FlipX, FlipY: c.FlipY}
}

// Failed reports whether no matcher result backs the candidate.
func (c Candidate) Failed() bool {
	return c.Method == MethodTemplateMatchingFailed
}

// CombinedScore is the weighted blend of a matcher score and an overlap
// score.
func CombinedScore(match, overlap float64) float64 {
	return MatchWeight*match + OverlapWeight*overlap
}

// SelectBest returns the candidate with the highest combined score. The
// slice must be in enumeration order; on exact ties the earliest candidate
// wins. ok is false for an empty slice.
func SelectBest(cands []Candidate) (best Candidate, ok bool) {
	for i, c := range cands {
		if i == 0 || c.CombinedScore > best.CombinedScore {
			best = c
			ok = true
		}
	}
	return best, ok
}

// TopCandidates returns up to k candidates ordered by combined score
// (descending), keeping enumeration order among equal scores.
func TopCandidates(cands []Candidate, k int) []Candidate {
	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CombinedScore != sorted[j].CombinedScore {
			return sorted[i].CombinedScore > sorted[j].CombinedScore
		}
		return sorted[i].Index < sorted[j].Index
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
