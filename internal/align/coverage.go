package align

import (
	"fmt"
	"strings"

	"github.com/ironsheep/cosmx-align/internal/imaging"
)

// Mode is a coverage mode: whether the secondary image spans the same
// tissue extent as the primary (full) or only a crop of it (partial).
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeFull    Mode = "full"
	ModePartial Mode = "partial"
	ModeUnknown Mode = "unknown"
)

// ParseMode parses a caller-supplied coverage mode. The empty string means
// auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeFull:
		return ModeFull, nil
	case ModePartial:
		return ModePartial, nil
	default:
		return "", fmt.Errorf("invalid coverage mode %q (want auto, full or partial)", s)
	}
}

// CoverageThresholds are the ratio cut-offs used by Classify.
type CoverageThresholds struct {
	// MinImageSizeRatio: secondary/primary pixel area below this is partial.
	MinImageSizeRatio float64 `yaml:"minImageSizeRatio"`

	// MaxTissueRatio: secondary/primary tissue above this is partial.
	MaxTissueRatio float64 `yaml:"maxTissueRatio"`

	// MinTissueRatio: secondary/primary tissue below this is partial.
	MinTissueRatio float64 `yaml:"minTissueRatio"`
}

// DefaultCoverageThresholds returns the empirical defaults.
func DefaultCoverageThresholds() CoverageThresholds {
	return CoverageThresholds{
		MinImageSizeRatio: 0.6,
		MaxTissueRatio:    1.5,
		MinTissueRatio:    0.4,
	}
}

// CoverageVerdict is the outcome of coverage classification.
type CoverageVerdict struct {
	Mode            Mode    `json:"mode"`
	TissueAreaRatio float64 `json:"tissue_area_ratio"`
	ImageSizeRatio  float64 `json:"image_size_ratio"`

	// Overridden is set when Mode was supplied by the caller.
	Overridden bool `json:"overridden"`
}

// SearchMode is the matcher strategy implied by the verdict. Unknown
// coverage is searched as partial.
func (v CoverageVerdict) SearchMode() Mode {
	if v.Mode == ModeFull {
		return ModeFull
	}
	return ModePartial
}

// Classify decides whether the CosMx mask covers the full H&E tissue extent.
//
// An override of ModeFull or ModePartial is returned verbatim; the ratios are
// still computed so they can be reported. Otherwise the first matching rule
// wins:
//
//  1. image_size_ratio < MinImageSizeRatio -> partial
//  2. tissue_ratio > MaxTissueRatio -> partial
//  3. tissue_ratio < MinTissueRatio -> partial
//  4. full
//
// An H&E mask without tissue gives tissue_ratio 0 and verdict unknown.
// Classify reads its inputs only and is deterministic.
func Classify(he, cosmx *imaging.Mask, override Mode, th CoverageThresholds) CoverageVerdict {
	v := CoverageVerdict{}

	if heArea := he.Area(); heArea > 0 {
		v.ImageSizeRatio = float64(cosmx.Area()) / float64(heArea)
	}
	heTissue := he.Count()
	if heTissue > 0 {
		v.TissueAreaRatio = float64(cosmx.Count()) / float64(heTissue)
	}

	if override == ModeFull || override == ModePartial {
		v.Mode = override
		v.Overridden = true
		return v
	}

	switch {
	case heTissue == 0:
		v.Mode = ModeUnknown
	case v.ImageSizeRatio < th.MinImageSizeRatio:
		v.Mode = ModePartial
	case v.TissueAreaRatio > th.MaxTissueRatio:
		v.Mode = ModePartial
	case v.TissueAreaRatio < th.MinTissueRatio:
		v.Mode = ModePartial
	default:
		v.Mode = ModeFull
	}
	return v
}
