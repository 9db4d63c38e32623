// Package transform builds and persists the per-slide transform record
// consumed by the slide viewer.
//
// The transform block (rotation, flip_x, flip_y, translateX, translateY,
// scale) is the stable consumer interface. The detection block is diagnostic
// and may change shape between versions.
package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ironsheep/cosmx-align/internal/align"
	"github.com/ironsheep/cosmx-align/internal/imaging"
)

const (
	// Version is written to every record.
	Version = "4.0"

	// FileName is the record's file name inside a slide's output directory.
	FileName = "transform.json"

	// DebugFileName is the optional overlay written next to the record.
	DebugFileName = "alignment_debug_v4.png"

	// TopCandidateCount caps the candidates listed in the detection block.
	TopCandidateCount = 5
)

// Sizes pairs the dimensions of the two inputs.
type Sizes struct {
	HE    imaging.Dimensions `json:"he"`
	CosMx imaging.Dimensions `json:"cosmx"`
}

// Transform is the rigid transform mapping the CosMx image onto the H&E
// image: rotate counter-clockwise, mirror (flip_x, then flip_y), scale,
// translate.
//
// TranslateX and TranslateY are fractions of the H&E working width and
// height; the _px fields are the same offsets in working pixels.
type Transform struct {
	Rotation     int     `json:"rotation"`
	FlipX        bool    `json:"flip_x"`
	FlipY        bool    `json:"flip_y"`
	TranslateX   float64 `json:"translateX"`
	TranslateY   float64 `json:"translateY"`
	TranslateXPx int     `json:"translateX_px"`
	TranslateYPx int     `json:"translateY_px"`
	Scale        float64 `json:"scale"`
}

// Candidate is the summary of one orientation hypothesis.
type Candidate struct {
	Rotation      int          `json:"rotation"`
	FlipX         bool         `json:"flip_x"`
	FlipY         bool         `json:"flip_y"`
	Scale         float64      `json:"scale"`
	Position      [2]int       `json:"position"`
	MatchScore    float64      `json:"match_score"`
	OverlapScore  float64      `json:"overlap_score"`
	CombinedScore float64      `json:"combined_score"`
	Method        align.Method `json:"method"`
}

// Detection holds diagnostics about how the transform was chosen.
type Detection struct {
	Method          align.Method `json:"method"`
	SearchMode      align.Mode   `json:"search_mode"`
	CombinedScore   float64      `json:"combined_score"`
	MatchScore      float64      `json:"match_score"`
	OverlapScore    float64      `json:"overlap_score"`
	FallbackUsed    bool         `json:"fallback_used"`
	Refined         bool         `json:"refined"`
	NeedsReview     bool         `json:"needs_review"`
	CoverageSource  string       `json:"coverage_source"`
	TissueAreaRatio float64      `json:"tissue_area_ratio"`
	ImageSizeRatio  float64      `json:"image_size_ratio"`
	ProcessingSize  int          `json:"processing_size"`
	TopCandidates   []Candidate  `json:"top_candidates"`
}

// Record is the persisted result for one slide.
//
// A record carries no timestamps or other run-dependent values, so the same
// inputs always serialise to the same bytes.
type Record struct {
	Version       string     `json:"version"`
	SlideID       string     `json:"slide_id"`
	CoverageMode  align.Mode `json:"coverage_mode"`
	OriginalSizes Sizes      `json:"original_sizes"`
	SizeRatio     float64    `json:"size_ratio"`
	WorkingSizes  Sizes      `json:"working_sizes"`
	Transform     Transform  `json:"transform"`
	Detection     *Detection `json:"detection,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// Build assembles the record for slideID from an alignment result and the
// two working images it was computed from.
func Build(slideID string, res *align.Result, he, cosmx *imaging.WorkingImage, processingSize int) *Record {
	heWork, cosmxWork := he.Size(), cosmx.Size()
	best := res.Best

	source := "auto"
	if res.Verdict.Overridden {
		source = "override"
	}

	top := align.TopCandidates(res.Candidates, TopCandidateCount)
	cands := make([]Candidate, len(top))
	for i, c := range top {
		cands[i] = Candidate{
			Rotation:      c.Rotation,
			FlipX:         c.FlipX,
			FlipY:         c.FlipY,
			Scale:         round(c.Scale),
			Position:      [2]int{c.DX, c.DY},
			MatchScore:    round(c.MatchScore),
			OverlapScore:  round(c.OverlapScore),
			CombinedScore: round(c.CombinedScore),
			Method:        c.Method,
		}
	}

	return &Record{
		Version:       Version,
		SlideID:       slideID,
		CoverageMode:  res.CoverageMode(),
		OriginalSizes: Sizes{HE: he.Original, CosMx: cosmx.Original},
		SizeRatio:     round(SizeRatio(he.Original, cosmx.Original)),
		WorkingSizes:  Sizes{HE: heWork, CosMx: cosmxWork},
		Transform: Transform{
			Rotation:     best.Rotation,
			FlipX:        best.FlipX,
			FlipY:        best.FlipY,
			TranslateX:   round(normalise(best.DX, heWork.Width)),
			TranslateY:   round(normalise(best.DY, heWork.Height)),
			TranslateXPx: best.DX,
			TranslateYPx: best.DY,
			Scale:        round(best.Scale),
		},
		Detection: &Detection{
			Method:          best.Method,
			SearchMode:      res.Mode,
			CombinedScore:   round(best.CombinedScore),
			MatchScore:      round(best.MatchScore),
			OverlapScore:    round(best.OverlapScore),
			FallbackUsed:    res.FallbackUsed,
			Refined:         res.Refinement != nil,
			NeedsReview:     res.NeedsReview,
			CoverageSource:  source,
			TissueAreaRatio: round(res.Verdict.TissueAreaRatio),
			ImageSizeRatio:  round(res.Verdict.ImageSizeRatio),
			ProcessingSize:  processingSize,
			TopCandidates:   cands,
		},
	}
}

// Identity is the record served for a slide that has not been aligned yet.
func Identity(slideID string) *Record {
	return &Record{
		Version:      Version,
		SlideID:      slideID,
		CoverageMode: align.ModeUnknown,
		Transform:    Transform{Scale: 1},
		Notes:        "no transform file found",
	}
}

// SizeRatio is the mean of the width and height ratios cosmx/he. Zero-sized
// primaries give 0.
func SizeRatio(he, cosmx imaging.Dimensions) float64 {
	if he.Width == 0 || he.Height == 0 {
		return 0
	}
	return (float64(cosmx.Width)/float64(he.Width) + float64(cosmx.Height)/float64(he.Height)) / 2
}

func normalise(px, extent int) float64 {
	if extent == 0 {
		return 0
	}
	return float64(px) / float64(extent)
}

// round trims scores to 6 decimals so records stay readable and stable.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Marshal renders rec as 2-space indented JSON with a trailing newline.
func Marshal(rec *Record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode transform record: %w", err)
	}
	return append(data, '\n'), nil
}

// Write stores rec at path, replacing any previous record and creating
// parent directories as needed.
func Write(path string, rec *Record) error {
	data, err := Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write transform record: %w", err)
	}
	return nil
}

// Read loads a record written by Write.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transform record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode transform record %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}
