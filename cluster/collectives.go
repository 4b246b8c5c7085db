package cluster

import (
	"fmt"

	"github.com/seisgo/fdtd"
)

// Vector describes a strided block layout inside a flat buffer: Count
// blocks of BlockLen contiguous elements whose starts are Stride elements
// apart. It plays the role of a resized MPI vector datatype, letting the
// master scatter and gather column blocks of (z, x, t)-ordered arrays
// without repacking them first.
type Vector struct {
	Count    int
	BlockLen int
	Stride   int
}

// Contig describes n contiguous elements.
func Contig(n int) Vector {
	return Vector{Count: 1, BlockLen: n, Stride: n}
}

// Len returns the number of elements the layout covers.
func (v Vector) Len() int { return v.Count * v.BlockLen }

// fits reports whether the layout, applied at offset, stays within a buffer
// of n elements.
func (v Vector) fits(n, offset int) bool {
	if v.Count < 1 || v.BlockLen < 0 || v.Stride < 0 || offset < 0 {
		return false
	}
	return offset+(v.Count-1)*v.Stride+v.BlockLen <= n
}

// packInto copies the strided blocks at offset in src into the contiguous
// buffer dst.
func (v Vector) packInto(dst, src []float64, offset int) {
	for b := 0; b < v.Count; b++ {
		start := offset + b*v.Stride
		copy(dst[b*v.BlockLen:(b+1)*v.BlockLen], src[start:start+v.BlockLen])
	}
}

// unpackInto copies the contiguous buffer src into the strided blocks at
// offset in dst.
func (v Vector) unpackInto(dst, src []float64, offset int) {
	for b := 0; b < v.Count; b++ {
		start := offset + b*v.Stride
		copy(dst[start:start+v.BlockLen], src[b*v.BlockLen:(b+1)*v.BlockLen])
	}
}

// Bcast distributes data from root to every rank. On the root, data is the
// payload; elsewhere it is the receive buffer.
func (c *Comm) Bcast(root, tag int, data []float64) error {
	if root < 0 || root >= c.world.size {
		return fmt.Errorf("%w: broadcast root %d", fdtd.ErrInvalidArgument, root)
	}
	if c.rank != root {
		return c.Recv(root, tag, data)
	}
	for dst := 0; dst < c.world.size; dst++ {
		if dst == root {
			continue
		}
		if err := c.Send(dst, tag, data); err != nil {
			return err
		}
	}
	return nil
}

// Scatterv distributes one strided view of the root's send buffer to each
// rank. views[r] applied at offsets[r] selects rank r's elements inside
// send; every rank (root included) receives its block contiguously into
// recv. This is a blocking collective: no rank returns before the root has
// packed and handed over its block.
func (c *Comm) Scatterv(root, tag int, send []float64, views []Vector, offsets []int, recv []float64) error {
	if c.rank != root {
		return c.Recv(root, tag, recv)
	}
	if len(views) != c.world.size || len(offsets) != c.world.size {
		return fmt.Errorf("%w: scatter needs one view and offset per rank", fdtd.ErrInvalidArgument)
	}
	for dst := 0; dst < c.world.size; dst++ {
		v, off := views[dst], offsets[dst]
		if !v.fits(len(send), off) {
			return fmt.Errorf("%w: scatter view %+v at offset %d exceeds send buffer of %d",
				fdtd.ErrInvalidArgument, v, off, len(send))
		}
		if dst == root {
			if len(recv) != v.Len() {
				return fmt.Errorf("%w: root receive buffer holds %d values, view selects %d",
					fdtd.ErrInvalidArgument, len(recv), v.Len())
			}
			v.packInto(recv, send, off)
			continue
		}
		buf := make([]float64, v.Len())
		v.packInto(buf, send, off)
		if err := c.Send(dst, tag, buf); err != nil {
			return err
		}
	}
	return nil
}

// Gatherv collects every rank's contiguous send buffer into strided views
// of the root's recv buffer, the inverse of Scatterv. Only the root writes
// into recv; all other ranks pass their local block and return once the
// root has taken it.
func (c *Comm) Gatherv(root, tag int, send []float64, views []Vector, offsets []int, recv []float64) error {
	if c.rank != root {
		return c.Send(root, tag, send)
	}
	if len(views) != c.world.size || len(offsets) != c.world.size {
		return fmt.Errorf("%w: gather needs one view and offset per rank", fdtd.ErrInvalidArgument)
	}
	for src := 0; src < c.world.size; src++ {
		v, off := views[src], offsets[src]
		if !v.fits(len(recv), off) {
			return fmt.Errorf("%w: gather view %+v at offset %d exceeds receive buffer of %d",
				fdtd.ErrInvalidArgument, v, off, len(recv))
		}
		if src == root {
			if len(send) != v.Len() {
				return fmt.Errorf("%w: root send buffer holds %d values, view selects %d",
					fdtd.ErrInvalidArgument, len(send), v.Len())
			}
			v.unpackInto(recv, send, off)
			continue
		}
		buf := make([]float64, v.Len())
		if err := c.Recv(src, tag, buf); err != nil {
			return err
		}
		v.unpackInto(recv, buf, off)
	}
	return nil
}
