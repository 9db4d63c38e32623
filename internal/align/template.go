package align

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/cosmx-align/internal/imaging"
)

// varianceEpsilon: windows or templates with less energy than this are
// constant and correlate as 0.
const varianceEpsilon = 1e-9

// partialReference caches what every template trial needs from the primary:
// its spectrum and integral images of values and squared values.
type partialReference struct {
	primary  *imaging.Mask
	spectrum []complex128
	sum      []float64
	sumSq    []float64
}

func newPartialReference(primary *imaging.Mask) *partialReference {
	w, h := primary.Width, primary.Height
	vals := primary.Floats()

	freq := toComplex(vals)
	newFFT2(w, h).forward(freq, h)

	// (w+1) x (h+1) summed-area tables with a zero first row and column.
	stride := w + 1
	sum := make([]float64, stride*(h+1))
	sumSq := make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rs, rsq float64
		for x := 0; x < w; x++ {
			v := vals[y*w+x]
			rs += v
			rsq += v * v
			sum[(y+1)*stride+x+1] = sum[y*stride+x+1] + rs
			sumSq[(y+1)*stride+x+1] = sumSq[y*stride+x+1] + rsq
		}
	}

	return &partialReference{primary: primary, spectrum: freq, sum: sum, sumSq: sumSq}
}

func (r *partialReference) window(tbl []float64, x, y, w, h int) float64 {
	stride := r.primary.Width + 1
	return tbl[(y+h)*stride+x+w] - tbl[y*stride+x+w] - tbl[(y+h)*stride+x] + tbl[y*stride+x]
}

// match locates the oriented secondary inside the primary by multi-scale
// template matching.
//
// Each scale in scales resizes the template; scales whose template would not
// fit inside the primary, or would be smaller than minSize on either side,
// are skipped. The best (scale, offset) pair over all admissible scales is
// kept, the earlier scale winning exact ties. ok is false when no scale is
// admissible.
func (r *partialReference) match(oriented *imaging.Mask, scales []float64, minSize int) (res matchResult, ok bool) {
	w, h := r.primary.Width, r.primary.Height
	var f *fft2
	var buf []complex128

	for _, s := range scales {
		tw, th := scaledSize(oriented.Width, oriented.Height, s)
		if tw > w || th > h || tw < minSize || th < minSize {
			continue
		}
		if f == nil {
			f = newFFT2(w, h)
			buf = make([]complex128, w*h)
		}

		score, dx, dy := r.correlate(oriented.Resize(tw, th), f, buf)
		if !ok || score > res.score {
			res = matchResult{dx: dx, dy: dy, scale: s, score: score, method: MethodTemplateMatching}
			ok = true
		}
	}
	return res, ok
}

// correlate computes the zero-mean normalised cross-correlation of tmpl at
// every position where it fits entirely inside the primary and returns the
// global maximum (first in raster order on ties), clamped to [0, 1].
//
// The numerator sum(T' * I) is one FFT cross-correlation of the primary with
// the mean-subtracted template; the window energy sum(I^2) - sum(I)^2/n
// comes from the integral images.
func (r *partialReference) correlate(tmpl *imaging.Mask, f *fft2, buf []complex128) (score float64, dx, dy int) {
	w, h := r.primary.Width, r.primary.Height
	tw, th := tmpl.Width, tmpl.Height

	vals := tmpl.Floats()
	mean := stat.Mean(vals, nil)
	var energy float64
	for i := range vals {
		vals[i] -= mean
		energy += vals[i] * vals[i]
	}
	if energy < varianceEpsilon {
		return 0, 0, 0
	}

	for i := range buf {
		buf[i] = 0
	}
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			buf[y*w+x] = complex(vals[y*tw+x], 0)
		}
	}
	f.forward(buf, th)
	for i, v := range buf {
		buf[i] = r.spectrum[i] * cmplx.Conj(v)
	}
	f.inverse(buf)

	n := float64(tw * th)
	best := math.Inf(-1)
	for y := 0; y <= h-th; y++ {
		for x := 0; x <= w-tw; x++ {
			s1 := r.window(r.sum, x, y, tw, th)
			s2 := r.window(r.sumSq, x, y, tw, th)
			v := s2 - s1*s1/n
			var ncc float64
			if v > varianceEpsilon {
				ncc = real(buf[y*w+x]) / math.Sqrt(energy*v)
			}
			if ncc > best {
				best, dx, dy = ncc, x, y
			}
		}
	}
	return math.Max(0, math.Min(1, best)), dx, dy
}
