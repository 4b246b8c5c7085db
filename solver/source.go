package solver

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"

	"github.com/seisgo/fdtd"
)

// RickerWavelet returns nt samples of a Ricker wavelet with the given peak
// frequency, delayed by one period so the injected pulse ramps up from near
// zero amplitude.
func RickerWavelet(peakFreq, dt float64, nt int) []float64 {
	w := make([]float64, nt)
	for i := range w {
		arg := math.Pi * peakFreq * (float64(i)*dt - 1/peakFreq)
		a := arg * arg
		w[i] = (1 - 2*a) * math.Exp(-a)
	}
	return w
}

// PointSource builds an nz x nx x nt source volume injecting the wavelet at
// a single cell. Wavelets shorter than nt are zero-padded.
func PointSource(nz, nx, nt, iz, ix int, wavelet []float64) (*sparse.DenseArray, error) {
	if nz < 1 || nx < 1 || nt < 1 {
		return nil, fmt.Errorf("%w: source volume extents %dx%dx%d", fdtd.ErrInvalidArgument, nz, nx, nt)
	}
	if iz < 0 || iz >= nz || ix < 0 || ix >= nx {
		return nil, fmt.Errorf("%w: source cell (%d,%d) outside %dx%d grid",
			fdtd.ErrInvalidArgument, iz, ix, nz, nx)
	}
	s := sparse.ZerosDense(nz, nx, nt)
	for t := 0; t < nt && t < len(wavelet); t++ {
		s.Set(wavelet[t], iz, ix, t)
	}
	return s, nil
}
