package stencil

import (
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/seisgo/fdtd"
)

// Diff applies the centered finite difference encoded by coeff along one
// axis of a rank-2 or rank-3 array:
//
//	out(i) = sum_k coeff[k] * (f(i+order+k) - f(i+order-1-k)) / dist
//
// for every valid output index, so the result is shrunk by
// HaloWidth(len(coeff)) samples along dim and unchanged along the others.
// dim is 1-based; values below 1 clamp to the first axis and values beyond
// the rank clamp to the last, matching the consumer contract of the
// propagation kernel. The operator is linear and has no side effects.
func Diff(data *sparse.DenseArray, coeff []float64, dist float64, dim int) (*sparse.DenseArray, error) {
	ax, err := diffAxis(data, coeff, dist, dim)
	if err != nil {
		return nil, err
	}
	shape := make([]int, len(data.Shape))
	copy(shape, data.Shape)
	shape[ax] -= HaloWidth(len(coeff))
	out := sparse.ZerosDense(shape...)
	if err := DiffInto(out, data, coeff, dist, dim); err != nil {
		return nil, err
	}
	return out, nil
}

// DiffInto is Diff writing into a caller-owned destination of the trimmed
// shape, so per-step scratch arrays can be reused instead of reallocated.
func DiffInto(dst, data *sparse.DenseArray, coeff []float64, dist float64, dim int) error {
	ax, err := diffAxis(data, coeff, dist, dim)
	if err != nil {
		return err
	}
	order := len(coeff)
	l := HaloWidth(order)
	n := data.Shape[ax]
	nOut := n - l

	if len(dst.Shape) != len(data.Shape) {
		return fmt.Errorf("%w: destination rank %d, want %d",
			fdtd.ErrDimensionMismatch, len(dst.Shape), len(data.Shape))
	}
	for i, want := range data.Shape {
		if i == ax {
			want = nOut
		}
		if dst.Shape[i] != want {
			return fmt.Errorf("%w: destination extent %d along axis %d, want %d",
				fdtd.ErrDimensionMismatch, dst.Shape[i], i+1, want)
		}
	}

	// Row-major stride decomposition: every element sits at
	// (pre*n + i)*post + q for axis index i.
	pre, post := 1, 1
	for i := 0; i < ax; i++ {
		pre *= data.Shape[i]
	}
	for i := ax + 1; i < len(data.Shape); i++ {
		post *= data.Shape[i]
	}

	for i := range dst.Elements {
		dst.Elements[i] = 0
	}
	for k := 0; k < order; k++ {
		hi := order + k
		lo := order - 1 - k
		for p := 0; p < pre; p++ {
			inBase := p * n * post
			outBase := p * nOut * post
			for i := 0; i < nOut; i++ {
				inHi := inBase + (i+hi)*post
				inLo := inBase + (i+lo)*post
				outRow := outBase + i*post
				for q := 0; q < post; q++ {
					dst.Elements[outRow+q] += coeff[k] *
						(data.Elements[inHi+q] - data.Elements[inLo+q]) / dist
				}
			}
		}
	}
	return nil
}

// diffAxis validates the operands and resolves the clamped 0-based axis.
func diffAxis(data *sparse.DenseArray, coeff []float64, dist float64, dim int) (int, error) {
	if data == nil || len(data.Shape) < 2 || len(data.Shape) > 3 {
		return 0, fmt.Errorf("%w: difference operator needs a rank-2 or rank-3 array",
			fdtd.ErrInvalidArgument)
	}
	if len(coeff) == 0 {
		return 0, fmt.Errorf("%w: empty coefficient sequence", fdtd.ErrInvalidArgument)
	}
	if dist <= 0 {
		return 0, fmt.Errorf("%w: grid spacing %g, want > 0", fdtd.ErrInvalidArgument, dist)
	}
	if dim < 1 {
		dim = 1
	}
	if dim > len(data.Shape) {
		dim = len(data.Shape)
	}
	ax := dim - 1
	if l := HaloWidth(len(coeff)); data.Shape[ax] <= l {
		return 0, fmt.Errorf("%w: extent %d along axis %d, need more than %d samples for an order-%d stencil",
			fdtd.ErrInvalidArgument, data.Shape[ax], dim, l, len(coeff))
	}
	return ax, nil
}
