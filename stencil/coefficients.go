package stencil

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/seisgo/fdtd"
)

// Kind selects the grid staggering a coefficient set is derived for.
type Kind int

const (
	// Regular evaluates the derivative on the same points the field is
	// sampled on.
	Regular Kind = iota

	// Staggered evaluates the derivative on half-integer points between
	// field samples. The acoustic propagation kernel uses this staggering.
	Staggered
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case Staggered:
		return "staggered"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts the string forms used by the orchestration layer
// ("r"/"regular", "s"/"staggered") into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "r", "regular":
		return Regular, nil
	case "s", "staggered":
		return Staggered, nil
	}
	return 0, fmt.Errorf("%w: unknown stencil kind %q", fdtd.ErrInvalidArgument, s)
}

// HaloWidth returns the number of samples one application of an order-point
// centered difference trims from the operated axis, 2*order-1. It is also
// the column count a rank must exchange with each neighbor per time step.
func HaloWidth(order int) int {
	return 2*order - 1
}

// Coefficients derives the weights of a centered first-derivative
// approximation of the given order by solving the Taylor-series matching
// conditions
//
//	regular:   A[i][j] = (j+1)^(2(i+1)-1),      b[0] = 1/2
//	staggered: A[i][j] = (2(j+1)-1)^(2(i+1)-1), b[0] = 1
//
// as a dense order x order linear system. Practical orders stay small
// (<= 6); the system grows ill-conditioned beyond that.
func Coefficients(order int, kind Kind) ([]float64, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: stencil order %d, want >= 1", fdtd.ErrInvalidArgument, order)
	}

	A := mat.NewDense(order, order, nil)
	b := mat.NewVecDense(order, nil)
	switch kind {
	case Regular:
		b.SetVec(0, 0.5)
		for i := 0; i < order; i++ {
			for j := 0; j < order; j++ {
				A.Set(i, j, math.Pow(float64(j+1), float64(2*(i+1)-1)))
			}
		}
	case Staggered:
		b.SetVec(0, 1)
		for i := 0; i < order; i++ {
			for j := 0; j < order; j++ {
				A.Set(i, j, math.Pow(float64(2*(j+1)-1), float64(2*(i+1)-1)))
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown stencil kind %v", fdtd.ErrInvalidArgument, kind)
	}

	var c mat.VecDense
	if err := c.SolveVec(A, b); err != nil {
		return nil, fmt.Errorf("%w: order-%d stencil system is singular: %v",
			fdtd.ErrInvalidArgument, order, err)
	}

	out := make([]float64, order)
	for i := range out {
		out[i] = c.AtVec(i)
	}
	return out, nil
}
