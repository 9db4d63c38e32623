package align

import (
	"testing"
)

func TestRefine_FindsBetterOffset(t *testing.T) {
	he := maskWithRects(100, 100, [4]int{30, 30, 60, 50})
	cosmx := maskWithRects(100, 100, [4]int{24, 27, 54, 47})

	start := Candidate{Scale: 1.0, MatchScore: 0.5, Method: MethodTemplateMatching}
	start.OverlapScore = IoUAt(he, cosmx, 0, 0)
	start.CombinedScore = CombinedScore(start.MatchScore, start.OverlapScore)

	r := Refine(he, cosmx, start, DefaultRefineOptions())
	if !r.Improved {
		t.Fatal("expected an improvement")
	}
	if r.DX != 6 || r.DY != 3 {
		t.Errorf("offset: got (%d,%d), want (6,3)", r.DX, r.DY)
	}
	if !approxEqual(r.OverlapScore, 1, 1e-12) {
		t.Errorf("overlap: got %v, want 1", r.OverlapScore)
	}
	if !approxEqual(r.Score, 0.65, 1e-9) {
		t.Errorf("score: got %v, want 0.65", r.Score)
	}

	moved := r.Apply(start)
	if moved.DX != 6 || moved.DY != 3 || moved.CombinedScore != r.Score {
		t.Errorf("Apply: got %+v", moved)
	}
	if moved.MatchScore != start.MatchScore || moved.Scale != start.Scale {
		t.Error("Apply changed match score or scale")
	}
}

func TestRefine_NeverDecreases(t *testing.T) {
	he := structuredPrimary()
	cosmx := cropMask(he, 40, 30, 48, 48)

	starts := []struct{ dx, dy int }{
		{40, 30}, {0, 0}, {10, 50}, {45, 33}, {100, 100},
	}
	for _, s := range starts {
		c := Candidate{DX: s.dx, DY: s.dy, Scale: 1.0, MatchScore: 0.4, Method: MethodTemplateMatching}
		c.OverlapScore = IoUAt(he, cosmx, s.dx, s.dy)
		c.CombinedScore = CombinedScore(c.MatchScore, c.OverlapScore)

		r := Refine(he, cosmx, c, DefaultRefineOptions())
		if r.Score < c.CombinedScore {
			t.Errorf("start (%d,%d): score fell from %v to %v", s.dx, s.dy, c.CombinedScore, r.Score)
		}
		if r.OverlapScore < c.OverlapScore {
			t.Errorf("start (%d,%d): overlap fell from %v to %v", s.dx, s.dy, c.OverlapScore, r.OverlapScore)
		}
		if r.DX < 0 || r.DY < 0 {
			t.Errorf("start (%d,%d): negative offset (%d,%d)", s.dx, s.dy, r.DX, r.DY)
		}
	}
}

func TestRefine_KeepsOptimum(t *testing.T) {
	he := structuredPrimary()
	cosmx := cropMask(he, 40, 30, 48, 48)

	c := Candidate{DX: 40, DY: 30, Scale: 1.0, MatchScore: 1, OverlapScore: 1, Method: MethodTemplateMatching}
	c.CombinedScore = CombinedScore(c.MatchScore, c.OverlapScore)

	r := Refine(he, cosmx, c, DefaultRefineOptions())
	if r.Improved {
		t.Errorf("moved away from the optimum to (%d,%d)", r.DX, r.DY)
	}
	if r.DX != 40 || r.DY != 30 || r.Score != c.CombinedScore {
		t.Errorf("got %+v", r)
	}
}

func TestRefine_PhaseCandidateUsesCanvasIoU(t *testing.T) {
	he := fullMask(100, 100)
	cosmx := maskWithRects(100, 100, [4]int{0, 0, 50, 100})

	c := Candidate{Scale: 1.0, MatchScore: 0.5, Method: MethodPhaseCorrelation}
	c.OverlapScore = CanvasIoUAt(he, cosmx, 0, 0)
	c.CombinedScore = CombinedScore(c.MatchScore, c.OverlapScore)

	// Every rightward shift keeps half the primary uncovered, so nothing
	// beats the start. Footprint IoU would report 1 for any of them.
	r := Refine(he, cosmx, c, DefaultRefineOptions())
	if r.Improved {
		t.Errorf("moved to (%d,%d) with overlap %v", r.DX, r.DY, r.OverlapScore)
	}
	if !approxEqual(r.OverlapScore, 0.5, 1e-12) {
		t.Errorf("overlap: got %v, want 0.5", r.OverlapScore)
	}
}

func TestRefine_SkipsFailedCandidate(t *testing.T) {
	he := fullMask(50, 50)
	cosmx := fullMask(20, 20)

	c := Candidate{Scale: 1.0, Method: MethodTemplateMatchingFailed}
	if r := Refine(he, cosmx, c, DefaultRefineOptions()); r.Improved || r.Score != 0 {
		t.Errorf("got %+v", r)
	}
}
