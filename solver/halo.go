package solver

import (
	"github.com/seisgo/fdtd/cluster"
)

// exchangeHalo swaps halo columns of a padded row-major field with both
// lateral neighbors. The field has rows of rowLen elements; only the nRows
// rows starting at firstRow take part (the depth pad rows stay zero on
// every rank and never travel). halo columns per side move each way: a rank
// sends its outermost owned columns and receives the neighbor's into its
// ghost columns. Edge ranks keep zero ghosts on their outer side, which is
// exactly the global zero padding of a single-rank run.
//
// The left pair completes before the right pair starts, and within a pair
// the cluster.SendsFirst parity policy orders the two blocking calls.
func exchangeHalo(c *cluster.Comm, tag int, field []float64,
	firstRow, nRows, rowLen, halo int, send, recv []float64) error {

	if halo == 0 || c.Size() == 1 {
		return nil
	}
	n := nRows * halo
	rank := c.Rank()

	if rank > 0 {
		packColumns(send, field, firstRow, nRows, rowLen, halo, halo)
		if err := c.SendRecv(rank-1, tag, send[:n], recv[:n]); err != nil {
			return err
		}
		unpackColumns(field, recv, firstRow, nRows, rowLen, 0, halo)
	}
	if rank < c.Size()-1 {
		packColumns(send, field, firstRow, nRows, rowLen, rowLen-2*halo, halo)
		if err := c.SendRecv(rank+1, tag, send[:n], recv[:n]); err != nil {
			return err
		}
		unpackColumns(field, recv, firstRow, nRows, rowLen, rowLen-halo, halo)
	}
	return nil
}

// packColumns copies nCols columns starting at colStart from the padded
// field into the contiguous transfer buffer.
func packColumns(dst, field []float64, firstRow, nRows, rowLen, colStart, nCols int) {
	for i := 0; i < nRows; i++ {
		start := (firstRow+i)*rowLen + colStart
		copy(dst[i*nCols:(i+1)*nCols], field[start:start+nCols])
	}
}

// unpackColumns copies the contiguous transfer buffer into nCols columns
// starting at colStart of the padded field.
func unpackColumns(field, src []float64, firstRow, nRows, rowLen, colStart, nCols int) {
	for i := 0; i < nRows; i++ {
		start := (firstRow+i)*rowLen + colStart
		copy(field[start:start+nCols], src[i*nCols:(i+1)*nCols])
	}
}
