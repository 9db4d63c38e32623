package align

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/cosmx-align/internal/imaging"
)

// zEpsilon keeps z-normalisation and spectrum normalisation finite on
// constant rasters.
const zEpsilon = 1e-8

// matchResult is what a matcher reports for one oriented secondary mask.
type matchResult struct {
	dx, dy int
	scale  float64
	score  float64
	method Method
}

// fullReference caches the spectrum of the z-normalised primary mask. It is
// built once per search pass and only read by trials.
type fullReference struct {
	primary  *imaging.Mask
	spectrum []complex128
}

func newFullReference(primary *imaging.Mask) *fullReference {
	freq := toComplex(zNormalize(primary.Floats()))
	newFFT2(primary.Width, primary.Height).forward(freq, primary.Height)
	return &fullReference{primary: primary, spectrum: freq}
}

// match locates the oriented secondary by phase correlation.
//
// The secondary is resized to the primary's exact dimensions, so scale is
// always 1.0. The translation is the integer peak of the inverse normalised
// cross-power spectrum, read as a signed offset. A peak implying a shift
// further than a quarter of the image in the negative direction usually
// means the correlation wrapped around, so the zero-shift hypothesis is also
// scored and the better IoU kept.
//
// The score is the whole-canvas IoU (CanvasIoUAt) at the chosen offset,
// multiplied by the aspect-ratio
// agreement between the oriented secondary and the primary, so variants that
// would need a stretch to fit are not scored as perfect.
func (r *fullReference) match(oriented *imaging.Mask) matchResult {
	w, h := r.primary.Width, r.primary.Height
	resized := oriented.Resize(w, h)

	freq := toComplex(zNormalize(resized.Floats()))
	f := newFFT2(w, h)
	f.forward(freq, h)
	for i, s := range freq {
		p := r.spectrum[i] * cmplx.Conj(s)
		freq[i] = p / complex(cmplx.Abs(p)+zEpsilon, 0)
	}
	f.inverse(freq)

	peak, best := 0, math.Inf(-1)
	for i, v := range freq {
		if real(v) > best {
			best = real(v)
			peak = i
		}
	}
	dx, dy := peak%w, peak/w
	if dx > w/2 {
		dx -= w
	}
	if dy > h/2 {
		dy -= h
	}

	iou := CanvasIoUAt(r.primary, resized, dx, dy)
	if dx < -w/4 || dy < -h/4 {
		if centered := CanvasIoUAt(r.primary, resized, 0, 0); centered > iou {
			dx, dy, iou = 0, 0, centered
		}
	}

	return matchResult{
		dx:     dx,
		dy:     dy,
		scale:  1.0,
		score:  iou * aspectAgreement(oriented, r.primary),
		method: MethodPhaseCorrelation,
	}
}

// zNormalize returns (v - mean) / (std + eps). A constant input maps to all
// zeros.
func zNormalize(vals []float64) []float64 {
	out := make([]float64, len(vals))
	if len(vals) < 2 {
		return out
	}
	mean, std := stat.MeanStdDev(vals, nil)
	if math.IsNaN(std) {
		return out
	}
	for i, v := range vals {
		out[i] = (v - mean) / (std + zEpsilon)
	}
	return out
}
