package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// MaskOptions holds the thresholds and morphology radii used by ExtractMask.
//
// Radii are in pixels; a radius of r searches a (2r+1)-pixel window. A radius
// of 0 disables that morphology pass.
type MaskOptions struct {
	// HEWhiteThreshold: H&E pixels with grayscale strictly below this value
	// are tissue. Slide glass scans near-white.
	HEWhiteThreshold uint8 `yaml:"heWhiteThreshold"`

	// HEOpenRadius removes isolated speckle from the H&E mask.
	HEOpenRadius float64 `yaml:"heOpenRadius"`

	// HECloseRadius fills small holes in the H&E mask.
	HECloseRadius float64 `yaml:"heCloseRadius"`

	// CosMxBlackThreshold and CosMxWhiteThreshold bound the grayscale band
	// treated as tissue in CosMx images (exclusive on both ends).
	CosMxBlackThreshold uint8 `yaml:"cosmxBlackThreshold"`
	CosMxWhiteThreshold uint8 `yaml:"cosmxWhiteThreshold"`

	// CosMxSaturation: CosMx pixels whose HSV saturation (0-1) exceeds this
	// are tissue regardless of brightness. Recovers faint coloured markers.
	CosMxSaturation float64 `yaml:"cosmxSaturation"`

	// CosMxDilateRadius and CosMxDilateIterations join sparse markers into a
	// contiguous region. Repeated square dilations add up, so the effective
	// reach is radius*iterations. Zero iterations runs one pass.
	CosMxDilateRadius     float64 `yaml:"cosmxDilateRadius"`
	CosMxDilateIterations int     `yaml:"cosmxDilateIterations"`

	// CosMxCloseRadius fills the remaining gaps after dilation.
	CosMxCloseRadius float64 `yaml:"cosmxCloseRadius"`

	// MinComponentArea drops 8-connected tissue components smaller than this
	// many pixels after morphology. 0 keeps everything.
	MinComponentArea int `yaml:"minComponentArea"`
}

// DefaultMaskOptions returns the empirically tuned extraction defaults.
func DefaultMaskOptions() MaskOptions {
	return MaskOptions{
		HEWhiteThreshold:      235,
		HEOpenRadius:          2,
		HECloseRadius:         4,
		CosMxBlackThreshold:   5,
		CosMxWhiteThreshold:   250,
		CosMxSaturation:       0.08,
		CosMxDilateRadius:     3,
		CosMxDilateIterations: 3,
		CosMxCloseRadius:      7,
		MinComponentArea:      0,
	}
}

// ExtractMask converts a working image into a tissue mask using the rule for
// its modality.
//
// # H&E
//
// Grayscale below HEWhiteThreshold is tissue, followed by an opening
// (erode, dilate) and a closing (dilate, erode).
//
// # CosMx
//
// CosMx rasters are sparse coloured markers on a light background. A pixel
// is tissue if its grayscale lies strictly between the black and white
// thresholds, or if its saturation exceeds CosMxSaturation. The result is
// dilated CosMxDilateIterations times and then closed. With the defaults the
// markers grow by 9 px, enough to bridge a lattice pitch of about 18 px.
//
// ExtractMask is a pure function of its input. An image with no visible
// tissue yields an empty mask.
func ExtractMask(wi *WorkingImage, opts MaskOptions) *Mask {
	var m *Mask
	switch wi.Modality {
	case ModalityCosMx:
		m = thresholdCosMx(wi.Image, opts)
		for i := 0; i < max(1, opts.CosMxDilateIterations); i++ {
			m = dilate(m, opts.CosMxDilateRadius)
		}
		m = closing(m, opts.CosMxCloseRadius)
	default:
		m = thresholdHE(wi.Image, opts)
		m = opening(m, opts.HEOpenRadius)
		m = closing(m, opts.HECloseRadius)
	}

	if opts.MinComponentArea > 0 {
		m = RemoveSmallComponents(m, opts.MinComponentArea)
	}
	return m
}

func thresholdHE(img *image.NRGBA, opts MaskOptions) *Mask {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < m.Width; x++ {
			m.Pix[y*m.Width+x] = row[x*4] < opts.HEWhiteThreshold
		}
	}
	return m
}

func thresholdCosMx(img *image.NRGBA, opts MaskOptions) *Mask {
	gray := imaging.Grayscale(img)
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		src := img.Pix[y*img.Stride:]
		grow := gray.Pix[y*gray.Stride:]
		for x := 0; x < m.Width; x++ {
			g := grow[x*4]
			if g > opts.CosMxBlackThreshold && g < opts.CosMxWhiteThreshold {
				m.Pix[y*m.Width+x] = true
				continue
			}
			i := x * 4
			c, ok := colorful.MakeColor(color.NRGBA{R: src[i], G: src[i+1], B: src[i+2], A: 255})
			if !ok {
				continue
			}
			_, s, _ := c.Hsv()
			m.Pix[y*m.Width+x] = s > opts.CosMxSaturation
		}
	}
	return m
}

// dilate and erode delegate to bild's rank filters on the 0/255 rendering
// of the mask.
func dilate(m *Mask, radius float64) *Mask {
	if radius <= 0 || m.Area() == 0 {
		return m
	}
	return MaskFromImage(effect.Dilate(m.Gray(), radius))
}

func erode(m *Mask, radius float64) *Mask {
	if radius <= 0 || m.Area() == 0 {
		return m
	}
	return MaskFromImage(effect.Erode(m.Gray(), radius))
}

func opening(m *Mask, radius float64) *Mask {
	return dilate(erode(m, radius), radius)
}

func closing(m *Mask, radius float64) *Mask {
	return erode(dilate(m, radius), radius)
}
