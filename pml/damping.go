// Package pml computes convolutional perfectly-matched-layer damping
// profiles and the per-step attenuation factors derived from them.
package pml

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"

	"github.com/seisgo/fdtd"
	"github.com/seisgo/fdtd/partitions"
)

// ReflectionCoeff is the theoretical reflection coefficient of the absorbing
// layer.
const ReflectionCoeff = 1e-6

// DampingProfile converts a distance-into-boundary field u and the local
// wave-speed field v (same shape) into damping coefficients
//
//	d0 = -(3*v)/(2*L) * ln(R)
//	d  = d0 * (u/L)^2
//
// where L is the physical thickness of the absorbing layer. d is zero where
// u is zero and rises monotonically with u.
func DampingProfile(u, v *sparse.DenseArray, L float64) (*sparse.DenseArray, error) {
	if L <= 0 {
		return nil, fmt.Errorf("%w: boundary thickness %g, want > 0", fdtd.ErrInvalidArgument, L)
	}
	if !sameShape(u.Shape, v.Shape) {
		return nil, fmt.Errorf("%w: distance grid %v vs wave-speed grid %v",
			fdtd.ErrDimensionMismatch, u.Shape, v.Shape)
	}

	logR := math.Log(ReflectionCoeff)
	d := sparse.ZerosDense(u.Shape...)
	for i, uv := range u.Elements {
		d0 := -(3 * v.Elements[i]) / (2 * L) * logR
		r := uv / L
		d.Elements[i] = d0 * r * r
	}
	return d, nil
}

// Attenuation converts a damping grid into the per-step factors exp(-d*dt)
// applied to the CPML memory variables.
func Attenuation(d *sparse.DenseArray, dt float64) *sparse.DenseArray {
	b := sparse.ZerosDense(d.Shape...)
	for i, dv := range d.Elements {
		b.Elements[i] = math.Exp(-dv * dt)
	}
	return b
}

// LateralProfile builds the two-sided x-axis damping grid over a rank-local
// column window. vel holds the wave speed at the window's cells; globalCol
// maps a local column to its global index, so halo-extended and staggered
// windows evaluate to the same values on every rank that covers them.
// region must classify the window's global column range; it is consumed
// uniformly for all four cases.
func LateralProfile(vel *sparse.DenseArray, region partitions.Region,
	globalCol func(int) int, nx, boundary int, dx float64) (*sparse.DenseArray, error) {

	if len(vel.Shape) != 2 {
		return nil, fmt.Errorf("%w: wave-speed window must be rank 2", fdtd.ErrInvalidArgument)
	}
	rows, cols := vel.Shape[0], vel.Shape[1]
	if boundary == 0 {
		return sparse.ZerosDense(rows, cols), nil
	}

	u := sparse.ZerosDense(rows, cols)
	for j := 0; j < cols; j++ {
		g := globalCol(j)
		var dist float64
		switch {
		case region.TouchesLeft() && g < boundary:
			dist = float64(boundary-g) * dx
		case region.TouchesRight() && g >= nx-boundary:
			dist = float64(g-(nx-boundary)+1) * dx
		default:
			continue
		}
		for i := 0; i < rows; i++ {
			u.Elements[i*cols+j] = dist
		}
	}
	return DampingProfile(u, vel, float64(boundary)*dx)
}

// DepthProfile builds the one-sided (bottom only) z-axis damping grid over a
// rank-local row window, with globalRow mapping local rows to global depth
// indices. The surface carries no damping.
func DepthProfile(vel *sparse.DenseArray, globalRow func(int) int,
	nz, boundary int, dz float64) (*sparse.DenseArray, error) {

	if len(vel.Shape) != 2 {
		return nil, fmt.Errorf("%w: wave-speed window must be rank 2", fdtd.ErrInvalidArgument)
	}
	rows, cols := vel.Shape[0], vel.Shape[1]
	if boundary == 0 {
		return sparse.ZerosDense(rows, cols), nil
	}

	u := sparse.ZerosDense(rows, cols)
	for i := 0; i < rows; i++ {
		g := globalRow(i)
		if g < nz-boundary {
			continue
		}
		dist := float64(g-(nz-boundary)+1) * dz
		for j := 0; j < cols; j++ {
			u.Elements[i*cols+j] = dist
		}
	}
	return DampingProfile(u, vel, float64(boundary)*dz)
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
