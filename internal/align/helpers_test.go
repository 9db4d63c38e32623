package align

import (
	"math"

	"github.com/ironsheep/cosmx-align/internal/imaging"
)

// maskWithRects builds a w x h mask with the given half-open rectangles
// (x1, y1, x2, y2) filled.
func maskWithRects(w, h int, rects ...[4]int) *imaging.Mask {
	m := imaging.NewMask(w, h)
	for _, r := range rects {
		m.FillRect(r[0], r[1], r[2], r[3])
	}
	return m
}

// cropMask copies the w x h window of m whose top-left corner is (x, y).
func cropMask(m *imaging.Mask, x, y, w, h int) *imaging.Mask {
	out := imaging.NewMask(w, h)
	for yy := 0; yy < h; yy++ {
		for xx := 0; xx < w; xx++ {
			out.Set(xx, yy, m.At(x+xx, y+yy))
		}
	}
	return out
}

func fullMask(w, h int) *imaging.Mask {
	return maskWithRects(w, h, [4]int{0, 0, w, h})
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// structuredPrimary is a 160x160 mask laid out so that no sub-window repeats
// under any rotation or mirror. The window at (40,30) of size 48x48 holds
// three asymmetric blocks.
func structuredPrimary() *imaging.Mask {
	return maskWithRects(160, 160,
		// inside the (40,30)-(88,78) window
		[4]int{44, 34, 58, 66},
		[4]int{62, 38, 84, 46},
		[4]int{66, 56, 76, 74},
		// elsewhere
		[4]int{5, 5, 30, 20},
		[4]int{100, 10, 150, 40},
		[4]int{110, 90, 130, 150},
		[4]int{10, 100, 60, 150},
		[4]int{95, 60, 105, 80},
	)
}

// rotateCCW90 turns m a quarter turn counter-clockwise without going through
// the imaging package.
func rotateCCW90(m *imaging.Mask) *imaging.Mask {
	out := imaging.NewMask(m.Height, m.Width)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			out.Set(y, m.Width-1-x, m.At(x, y))
		}
	}
	return out
}
