package align

import (
	"math"

	"github.com/ironsheep/cosmx-align/internal/imaging"
)

// Prepare returns the secondary mask ready for placement on the primary:
// oriented per the candidate and then resized. Phase-correlation candidates
// are resized to the primary's exact dimensions; template candidates are
// scaled by their Scale factor.
func Prepare(cosmx *imaging.Mask, c Candidate, primary imaging.Dimensions) *imaging.Mask {
	return prepareOriented(c.Orientation().Apply(cosmx), c, primary)
}

func prepareOriented(oriented *imaging.Mask, c Candidate, primary imaging.Dimensions) *imaging.Mask {
	if c.Method == MethodPhaseCorrelation {
		return oriented.Resize(primary.Width, primary.Height)
	}
	w, h := scaledSize(oriented.Width, oriented.Height, c.Scale)
	return oriented.Resize(w, h)
}

func scaledSize(w, h int, scale float64) (int, int) {
	return int(math.Round(float64(w) * scale)), int(math.Round(float64(h) * scale))
}

// OverlapAt scores candidate c's placed secondary at (dx, dy) with the IoU
// matching its method: CanvasIoUAt for phase correlation, IoUAt for
// template matching.
func OverlapAt(primary, placed *imaging.Mask, c Candidate, dx, dy int) float64 {
	if c.Method == MethodPhaseCorrelation {
		return CanvasIoUAt(primary, placed, dx, dy)
	}
	return IoUAt(primary, placed, dx, dy)
}

// IoUAt scores the placement of a template-matched secondary with its
// top-left corner at (dx, dy) on the primary canvas.
//
// The primary is restricted to the secondary's footprint, so a crop placed
// exactly where it was cut from scores 1.0 even though it covers a fraction
// of the primary. Secondary tissue pushed off the canvas counts towards the
// union. When both masks have the same size and the offset is (0,0) this is
// the plain intersection-over-union of the two masks. Returns 0 when the
// union is empty.
func IoUAt(primary, secondary *imaging.Mask, dx, dy int) float64 {
	inter, union := 0, 0
	for sy := 0; sy < secondary.Height; sy++ {
		y := sy + dy
		srow := secondary.Pix[sy*secondary.Width : (sy+1)*secondary.Width]
		if y < 0 || y >= primary.Height {
			for _, s := range srow {
				if s {
					union++
				}
			}
			continue
		}
		prow := primary.Pix[y*primary.Width : (y+1)*primary.Width]
		for sx, s := range srow {
			x := sx + dx
			if x < 0 || x >= primary.Width {
				if s {
					union++
				}
				continue
			}
			p := prow[x]
			if p && s {
				inter++
			}
			if p || s {
				union++
			}
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// CanvasIoUAt is the intersection-over-union of the whole primary mask and
// the secondary translated by (dx, dy), taken over the primary canvas.
//
// Secondary tissue shifted off the canvas is dropped and primary tissue the
// secondary does not reach stays in the union, so a shift that uncovers part
// of the primary is penalised. Returns 0 when the union is empty.
func CanvasIoUAt(primary, secondary *imaging.Mask, dx, dy int) float64 {
	inter, placed := 0, 0
	for sy := 0; sy < secondary.Height; sy++ {
		y := sy + dy
		if y < 0 || y >= primary.Height {
			continue
		}
		srow := secondary.Pix[sy*secondary.Width : (sy+1)*secondary.Width]
		prow := primary.Pix[y*primary.Width : (y+1)*primary.Width]
		for sx, s := range srow {
			x := sx + dx
			if !s || x < 0 || x >= primary.Width {
				continue
			}
			placed++
			if prow[x] {
				inter++
			}
		}
	}
	union := primary.Count() + placed - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// aspectAgreement compares the aspect ratios of two masks: 1 when equal,
// falling towards 0 as they diverge.
func aspectAgreement(a, b *imaging.Mask) float64 {
	if a.Width == 0 || a.Height == 0 || b.Width == 0 || b.Height == 0 {
		return 0
	}
	ra := float64(a.Width) / float64(a.Height)
	rb := float64(b.Width) / float64(b.Height)
	return math.Min(ra/rb, rb/ra)
}
