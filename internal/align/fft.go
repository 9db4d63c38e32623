package align

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2 computes 2D discrete Fourier transforms of row-major w x h grids by
// transforming rows and then columns with gonum's complex FFT.
//
// An fft2 holds scratch buffers and is not safe for concurrent use; each
// trial builds its own.
type fft2 struct {
	w, h   int
	rows   *fourier.CmplxFFT
	cols   *fourier.CmplxFFT
	rowOut []complex128
	colIn  []complex128
	colOut []complex128
}

func newFFT2(w, h int) *fft2 {
	return &fft2{
		w:      w,
		h:      h,
		rows:   fourier.NewCmplxFFT(w),
		cols:   fourier.NewCmplxFFT(h),
		rowOut: make([]complex128, w),
		colIn:  make([]complex128, h),
		colOut: make([]complex128, h),
	}
}

// forward replaces data with its unnormalised DFT. Rows at or beyond
// nonZeroRows are known to be zero and skip the row pass.
func (f *fft2) forward(data []complex128, nonZeroRows int) {
	if nonZeroRows > f.h || nonZeroRows < 0 {
		nonZeroRows = f.h
	}
	for y := 0; y < nonZeroRows; y++ {
		row := data[y*f.w : (y+1)*f.w]
		f.rows.Coefficients(f.rowOut, row)
		copy(row, f.rowOut)
	}
	for x := 0; x < f.w; x++ {
		for y := 0; y < f.h; y++ {
			f.colIn[y] = data[y*f.w+x]
		}
		f.cols.Coefficients(f.colOut, f.colIn)
		for y := 0; y < f.h; y++ {
			data[y*f.w+x] = f.colOut[y]
		}
	}
}

// inverse replaces data with its inverse DFT, normalised by 1/(w*h).
// Computed as conj(DFT(conj(X)))/n so only the forward transform is used.
func (f *fft2) inverse(data []complex128) {
	for i, v := range data {
		data[i] = cmplx.Conj(v)
	}
	f.forward(data, f.h)
	scale := 1 / float64(f.w*f.h)
	for i, v := range data {
		data[i] = complex(real(v)*scale, -imag(v)*scale)
	}
}

// toComplex copies real values into a new complex slice.
func toComplex(vals []float64) []complex128 {
	out := make([]complex128, len(vals))
	for i, v := range vals {
		out[i] = complex(v, 0)
	}
	return out
}
