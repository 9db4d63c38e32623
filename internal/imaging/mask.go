package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Mask is a binary tissue-presence raster. A set pixel denotes tissue.
//
// Pix is stored row-major: the pixel at (x, y) is Pix[y*Width+x]. Masks are
// built once (by extraction, resizing or orientation) and then treated as
// immutable; Set exists for construction only.
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// NewMask returns an empty (all background) mask of the given size.
func NewMask(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]bool, width*height),
	}
}

// At reports whether (x, y) is tissue. Coordinates outside the mask are
// background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set marks (x, y) as tissue or background. Out-of-range coordinates are
// ignored. Only call Set while building a mask.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// FillRect marks the half-open rectangle [x1,x2)x[y1,y2) as tissue,
// clipped to the mask.
func (m *Mask) FillRect(x1, y1, x2, y2 int) {
	x1, y1 = max(x1, 0), max(y1, 0)
	x2, y2 = min(x2, m.Width), min(y2, m.Height)
	for y := y1; y < y2; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x := x1; x < x2; x++ {
			row[x] = true
		}
	}
}

// Size returns the mask dimensions.
func (m *Mask) Size() Dimensions {
	return Dimensions{Width: m.Width, Height: m.Height}
}

// Area returns the total pixel count, tissue or not.
func (m *Mask) Area() int {
	return m.Width * m.Height
}

// Count returns the number of tissue pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{Width: m.Width, Height: m.Height, Pix: make([]bool, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Equal reports whether both masks have the same size and pixels.
func (m *Mask) Equal(o *Mask) bool {
	if m.Width != o.Width || m.Height != o.Height {
		return false
	}
	for i, v := range m.Pix {
		if o.Pix[i] != v {
			return false
		}
	}
	return true
}

// Floats returns the mask as 0/1 values in row-major order.
func (m *Mask) Floats() []float64 {
	out := make([]float64, len(m.Pix))
	for i, v := range m.Pix {
		if v {
			out[i] = 1
		}
	}
	return out
}

// Gray renders the mask as an 8-bit image: tissue 255, background 0.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v {
			img.Pix[(i/m.Width)*img.Stride+i%m.Width] = 255
		}
	}
	return img
}

// MaskFromImage thresholds img at mid-gray: pixels whose luminance is at
// least 128 become tissue. It is the inverse of Gray for binary images.
func MaskFromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < m.Height; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < m.Width; x++ {
				m.Pix[y*m.Width+x] = row[x*4] >= 128
			}
		}
	case *image.RGBA:
		for y := 0; y < m.Height; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < m.Width; x++ {
				m.Pix[y*m.Width+x] = row[x*4] >= 128
			}
		}
	case *image.Gray:
		for y := 0; y < m.Height; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < m.Width; x++ {
				m.Pix[y*m.Width+x] = row[x] >= 128
			}
		}
	default:
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				m.Pix[y*m.Width+x] = g.Y >= 128
			}
		}
	}
	return m
}

// Resize returns the mask resampled to width x height with nearest-neighbour
// interpolation, so the result stays strictly binary.
func (m *Mask) Resize(width, height int) *Mask {
	if width == m.Width && height == m.Height {
		return m.Clone()
	}
	if width <= 0 || height <= 0 || m.Width == 0 || m.Height == 0 {
		return NewMask(width, height)
	}
	return MaskFromImage(imaging.Resize(m.Gray(), width, height, imaging.NearestNeighbor))
}
