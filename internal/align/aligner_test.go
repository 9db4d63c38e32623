package align

import (
	"testing"

	"github.com/ironsheep/cosmx-align/internal/imaging"
)

func TestAlign_RotatedFullCoverage(t *testing.T) {
	he := fullMask(200, 100)
	cosmx := fullMask(100, 200)

	res := NewAligner(DefaultOptions(), nil).Align(he, cosmx, ModeAuto, false)

	if res.Verdict.Mode != ModeFull {
		t.Fatalf("verdict: got %s, want full", res.Verdict.Mode)
	}
	if len(res.Candidates) != 16 {
		t.Errorf("candidates: got %d, want 16", len(res.Candidates))
	}
	if res.FallbackRan {
		t.Error("fallback should not run")
	}
	if res.Best.Rotation != 90 || res.Best.FlipX || res.Best.FlipY {
		t.Errorf("best orientation: got %v, want rot=90 without flips", res.Best.Orientation())
	}
	if res.Best.Method != MethodPhaseCorrelation {
		t.Errorf("method: got %s", res.Best.Method)
	}
	if !approxEqual(res.Best.CombinedScore, 1, 1e-9) {
		t.Errorf("score: got %v, want 1", res.Best.CombinedScore)
	}
	if res.NeedsReview {
		t.Error("should not need review")
	}
	if res.CoverageMode() != ModeFull {
		t.Errorf("coverage mode: got %s", res.CoverageMode())
	}
}

func TestAlign_CounterClockwiseInputLabels(t *testing.T) {
	he := maskWithRects(160, 120,
		[4]int{10, 10, 70, 30},
		[4]int{10, 30, 30, 100},
		[4]int{90, 60, 150, 75},
		[4]int{120, 20, 135, 50},
	)
	cosmx := rotateCCW90(he)

	res := NewAligner(DefaultOptions(), nil).Align(he, cosmx, ModeFull, false)

	// rot=90 flipX flipY (index 7) undoes the turn and ties with rot=270
	// (index 12); enumeration order picks the former.
	want := imaging.Orientation{Rotation: 90, FlipX: true, FlipY: true}
	if got := res.Best.Orientation(); got != want {
		t.Fatalf("best orientation: got %v, want %v", got, want)
	}
	if res.Best.Index != 7 {
		t.Errorf("best index: got %d, want 7", res.Best.Index)
	}
	if !approxEqual(res.Best.CombinedScore, 1, 1e-9) {
		t.Errorf("score: got %v, want 1", res.Best.CombinedScore)
	}
	if !res.Best.Orientation().Apply(cosmx).Equal(he) {
		t.Error("best orientation does not restore the primary")
	}
	if !(imaging.Orientation{Rotation: 270}).Apply(cosmx).Equal(he) {
		t.Error("rot=270 should also restore the primary")
	}
}

func TestAlign_PartialCrop(t *testing.T) {
	he := structuredPrimary()
	cosmx := cropMask(he, 40, 30, 48, 48)

	res := NewAligner(DefaultOptions(), nil).Align(he, cosmx, ModeAuto, true)

	if res.Verdict.Mode != ModePartial {
		t.Fatalf("verdict: got %s, want partial", res.Verdict.Mode)
	}
	if res.Mode != ModePartial {
		t.Errorf("mode: got %s", res.Mode)
	}
	if res.Best.Orientation() != (imaging.Orientation{}) {
		t.Errorf("orientation: got %v, want identity", res.Best.Orientation())
	}
	if res.Best.DX != 40 || res.Best.DY != 30 {
		t.Errorf("offset: got (%d,%d), want (40,30)", res.Best.DX, res.Best.DY)
	}
	if res.Best.Scale != 1.0 {
		t.Errorf("scale: got %v", res.Best.Scale)
	}
	if res.Best.CombinedScore < 0.99 {
		t.Errorf("score: got %v", res.Best.CombinedScore)
	}
	if res.Refinement == nil || res.Refinement.Improved {
		t.Errorf("refinement: got %+v, want unimproved result", res.Refinement)
	}
	if res.NeedsReview {
		t.Error("should not need review")
	}
}

func TestAlign_SmallCropOfLargeSlide(t *testing.T) {
	he := maskWithRects(1000, 1000,
		// inside the (300,150)-(500,350) window
		[4]int{310, 160, 380, 200},
		[4]int{310, 200, 340, 330},
		[4]int{400, 250, 480, 270},
		[4]int{450, 170, 470, 240},
		// elsewhere
		[4]int{50, 50, 250, 120},
		[4]int{600, 400, 900, 480},
		[4]int{100, 600, 300, 900},
		[4]int{700, 700, 760, 950},
	)
	cosmx := cropMask(he, 300, 150, 200, 200)

	opts := DefaultOptions()
	opts.Search.Scales = []float64{0.9, 1.0, 1.1}

	res := NewAligner(opts, nil).Align(he, cosmx, ModeAuto, false)

	if !approxEqual(res.Verdict.ImageSizeRatio, 0.04, 1e-12) {
		t.Errorf("image size ratio: got %v, want 0.04", res.Verdict.ImageSizeRatio)
	}
	if res.Verdict.Mode != ModePartial || res.Mode != ModePartial {
		t.Fatalf("verdict %s, mode %s, want partial", res.Verdict.Mode, res.Mode)
	}
	if res.Best.Orientation() != (imaging.Orientation{}) {
		t.Errorf("orientation: got %v, want identity", res.Best.Orientation())
	}
	if res.Best.DX != 300 || res.Best.DY != 150 {
		t.Errorf("offset: got (%d,%d), want (300,150)", res.Best.DX, res.Best.DY)
	}
	if res.Best.Scale != 1.0 {
		t.Errorf("scale: got %v, want 1", res.Best.Scale)
	}
	if res.Best.CombinedScore < 0.99 {
		t.Errorf("score: got %v", res.Best.CombinedScore)
	}
}

func TestAlign_DisjointRunsFallback(t *testing.T) {
	he := maskWithRects(40, 40, [4]int{5, 5, 35, 35})
	cosmx := imaging.NewMask(40, 40)

	res := NewAligner(DefaultOptions(), nil).Align(he, cosmx, ModeFull, false)

	if !res.Verdict.Overridden || res.Verdict.Mode != ModeFull {
		t.Errorf("verdict: got %+v", res.Verdict)
	}
	if !res.FallbackRan {
		t.Fatal("fallback should run")
	}
	if res.FallbackUsed {
		t.Error("fallback should not win a tie")
	}
	if len(res.Candidates) != 32 {
		t.Fatalf("candidates: got %d, want 32", len(res.Candidates))
	}
	for i, c := range res.Candidates {
		if c.Index != i {
			t.Errorf("slot %d holds index %d", i, c.Index)
		}
		if c.OverlapScore != 0 {
			t.Errorf("candidate %d: overlap %v", i, c.OverlapScore)
		}
	}
	if res.Best.Index != 0 {
		t.Errorf("best index: got %d, want 0", res.Best.Index)
	}
	if !res.NeedsReview {
		t.Error("expected needs review")
	}
	if res.CoverageMode() != ModeFull {
		t.Errorf("coverage mode: got %s", res.CoverageMode())
	}
}

func TestAlign_FallbackReplacesWeakFullResult(t *testing.T) {
	he := structuredPrimary()
	cosmx := cropMask(he, 40, 30, 48, 48)

	opts := DefaultOptions()
	opts.FallbackThreshold = 1.01 // force the second pass

	res := NewAligner(opts, nil).Align(he, cosmx, ModeFull, false)
	if !res.FallbackRan || !res.FallbackUsed {
		t.Fatalf("fallback ran %t used %t", res.FallbackRan, res.FallbackUsed)
	}
	if res.Mode != ModePartial || res.CoverageMode() != ModePartial {
		t.Errorf("mode %s, coverage %s", res.Mode, res.CoverageMode())
	}
	if res.Best.Index < 16 {
		t.Errorf("best index %d should come from the fallback pass", res.Best.Index)
	}
	if res.Best.DX != 40 || res.Best.DY != 30 {
		t.Errorf("offset: got (%d,%d)", res.Best.DX, res.Best.DY)
	}
}

func TestAlign_BestIsMaximum(t *testing.T) {
	he := structuredPrimary()
	cosmx := imaging.Orientation{Rotation: 180, FlipX: true}.Apply(cropMask(he, 40, 30, 48, 48))

	res := NewAligner(DefaultOptions(), nil).Align(he, cosmx, ModeAuto, false)
	for _, c := range res.Candidates {
		if c.CombinedScore > res.Best.CombinedScore {
			t.Errorf("candidate %d scores %v above best %v", c.Index, c.CombinedScore, res.Best.CombinedScore)
		}
	}
	got := res.Best.Orientation().Apply(cosmx)
	want := cropMask(he, 40, 30, 48, 48)
	if !got.Equal(want) {
		t.Errorf("best orientation %v does not undo the applied variant", res.Best.Orientation())
	}
}
