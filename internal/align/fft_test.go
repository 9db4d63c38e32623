package align

import (
	"math/cmplx"
	"testing"
)

func TestFFT2_RoundTrip(t *testing.T) {
	w, h := 12, 10
	data := make([]complex128, w*h)
	for i := range data {
		data[i] = complex(float64((i*7)%11), 0)
	}
	orig := append([]complex128(nil), data...)

	f := newFFT2(w, h)
	f.forward(data, h)
	f.inverse(data)

	for i := range data {
		if cmplx.Abs(data[i]-orig[i]) > 1e-9 {
			t.Fatalf("index %d: got %v, want %v", i, data[i], orig[i])
		}
	}
}

func TestFFT2_Delta(t *testing.T) {
	w, h := 8, 6
	data := make([]complex128, w*h)
	data[0] = 1

	newFFT2(w, h).forward(data, 1)
	for i, v := range data {
		if cmplx.Abs(v-1) > 1e-12 {
			t.Fatalf("coefficient %d: got %v, want 1", i, v)
		}
	}
}

func TestFFT2_SkipsZeroRows(t *testing.T) {
	w, h := 8, 8
	a := make([]complex128, w*h)
	for x := 0; x < w; x++ {
		a[x] = complex(float64(x), 0)
		a[w+x] = complex(float64(w-x), 0)
	}
	b := append([]complex128(nil), a...)

	f := newFFT2(w, h)
	f.forward(a, h)
	f.forward(b, 2)
	for i := range a {
		if cmplx.Abs(a[i]-b[i]) > 1e-9 {
			t.Fatalf("index %d: full %v, partial %v", i, a[i], b[i])
		}
	}
}
