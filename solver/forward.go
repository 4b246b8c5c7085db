package solver

import (
	"fmt"
	"log"
	"math"

	"github.com/ctessum/sparse"

	"github.com/seisgo/fdtd"
	"github.com/seisgo/fdtd/cluster"
	"github.com/seisgo/fdtd/partitions"
	"github.com/seisgo/fdtd/stencil"
)

// Forward runs distributed forward modeling of the 2-D acoustic wave
// equation over the world's ranks and returns the master's result.
//
// velocity (nz x nx, positive wave speeds) and source (nz x nx x nt) are
// read on the master only; workers receive their column blocks by scatter.
// All preconditions are checked before any communication is attempted, and
// any rank failure aborts the whole group.
func Forward(world *cluster.World, velocity, source *sparse.DenseArray, cfg Config) (*Result, error) {
	if err := validate(velocity, source, cfg); err != nil {
		return nil, err
	}
	nz, nx := source.Shape[0], source.Shape[1]

	layout, err := partitions.NewLayout(nx, nz, world.Size())
	if err != nil {
		return nil, err
	}
	if l := stencil.HaloWidth(cfg.DiffOrder); world.Size() > 1 && layout.MinCount() < l {
		return nil, fmt.Errorf("%w: narrowest block owns %d columns, the order-%d stencil needs %d per neighbor exchange",
			fdtd.ErrPartitionInfeasible, layout.MinCount(), cfg.DiffOrder, l)
	}

	results := make([]*Result, world.Size())
	if err := world.Run(func(c *cluster.Comm) error {
		res, err := forwardRank(c, velocity, source, cfg)
		if err != nil {
			return err
		}
		results[c.Rank()] = res
		return nil
	}); err != nil {
		return nil, err
	}
	return results[cluster.Master], nil
}

func validate(velocity, source *sparse.DenseArray, cfg Config) error {
	if velocity == nil || source == nil {
		return fmt.Errorf("%w: nil velocity model or source field", fdtd.ErrInvalidArgument)
	}
	if len(velocity.Shape) != 2 {
		return fmt.Errorf("%w: velocity model must be rank 2, got rank %d",
			fdtd.ErrInvalidArgument, len(velocity.Shape))
	}
	if len(source.Shape) != 3 {
		return fmt.Errorf("%w: source field must be rank 3, got rank %d",
			fdtd.ErrInvalidArgument, len(source.Shape))
	}
	nz, nx, nt := source.Shape[0], source.Shape[1], source.Shape[2]
	if velocity.Shape[0] != nz || velocity.Shape[1] != nx {
		return fmt.Errorf("%w: velocity model %dx%d vs source field %dx%dx%d",
			fdtd.ErrDimensionMismatch, velocity.Shape[0], velocity.Shape[1], nz, nx, nt)
	}
	if nt < 1 {
		return fmt.Errorf("%w: %d time steps", fdtd.ErrInvalidArgument, nt)
	}
	if cfg.DiffOrder < 1 {
		return fmt.Errorf("%w: difference order %d, want >= 1", fdtd.ErrInvalidArgument, cfg.DiffOrder)
	}
	if cfg.Boundary < 0 {
		return fmt.Errorf("%w: boundary width %d, want >= 0", fdtd.ErrInvalidArgument, cfg.Boundary)
	}
	if 2*cfg.Boundary > nx || cfg.Boundary > nz {
		return fmt.Errorf("%w: boundary width %d does not fit a %dx%d grid",
			fdtd.ErrInvalidArgument, cfg.Boundary, nz, nx)
	}
	if cfg.Dz <= 0 || cfg.Dx <= 0 || cfg.Dt <= 0 {
		return fmt.Errorf("%w: spacings dz=%g dx=%g dt=%g, want > 0",
			fdtd.ErrInvalidArgument, cfg.Dz, cfg.Dx, cfg.Dt)
	}
	if cfg.ReceiverDepth < 0 || cfg.ReceiverDepth >= nz {
		return fmt.Errorf("%w: receiver depth %d outside [0,%d)", fdtd.ErrInvalidArgument, cfg.ReceiverDepth, nz)
	}
	if _, err := checkedSize(nz, nx, nt); err != nil {
		return err
	}
	return nil
}

// forwardRank is the per-rank body of a run: scatter, local setup, time
// stepping, gather.
func forwardRank(c *cluster.Comm, velocity, source *sparse.DenseArray, cfg Config) (*Result, error) {
	// Grid extents travel by broadcast so workers never read the
	// master-owned arrays.
	dims := make([]float64, 3)
	if c.Rank() == cluster.Master {
		dims[0] = float64(source.Shape[0])
		dims[1] = float64(source.Shape[1])
		dims[2] = float64(source.Shape[2])
	}
	if err := c.Bcast(cluster.Master, tagDims, dims); err != nil {
		return nil, err
	}
	nz, nx, nt := int(dims[0]), int(dims[1]), int(dims[2])

	layout, err := partitions.NewLayout(nx, nz, c.Size())
	if err != nil {
		return nil, err
	}
	blk := layout.Blocks[c.Rank()]
	w := blk.Count
	l := stencil.HaloWidth(cfg.DiffOrder)
	if cfg.Verbose {
		region := partitions.Classify(blk.Offset, w, cfg.Boundary, nx)
		log.Printf("rank %d: columns [%d,%d), %s region", c.Rank(), blk.Offset, blk.Offset+w, region)
	}

	// Scatter the velocity model by bands: nz rows of the rank's columns,
	// landing contiguously as an nz x w block.
	var sendVel, sendSrc []float64
	if c.Rank() == cluster.Master {
		sendVel = velocity.Elements
		sendSrc = source.Elements
	}
	velViews := make([]cluster.Vector, c.Size())
	velOffsets := make([]int, c.Size())
	srcViews := make([]cluster.Vector, c.Size())
	srcOffsets := make([]int, c.Size())
	for r, b := range layout.Blocks {
		velViews[r] = cluster.Vector{Count: nz, BlockLen: b.Count, Stride: nx}
		velOffsets[r] = b.Offset
		srcViews[r] = cluster.Vector{Count: nz, BlockLen: b.Count * nt, Stride: nx * nt}
		srcOffsets[r] = b.Offset * nt
	}
	velLocal := make([]float64, layout.BandCounts[c.Rank()])
	if err := c.Scatterv(cluster.Master, tagVelocity, sendVel, velViews, velOffsets, velLocal); err != nil {
		return nil, err
	}

	// Scatter the source field with the same ZT-plane striding scaled by
	// nt, preserving (z, x, t) order so the local block is contiguous.
	nSrc, err := checkedSize(nz, w, nt)
	if err != nil {
		return nil, err
	}
	srcLocal := make([]float64, nSrc)
	if err := c.Scatterv(cluster.Master, tagSource, sendSrc, srcViews, srcOffsets, srcLocal); err != nil {
		return nil, err
	}

	// Pad the wave-speed block with halo columns and fill them from the
	// neighbors once; the staggered damping windows read them.
	colsP := w + 2*l
	velPad := make([]float64, nz*colsP)
	for iz := 0; iz < nz; iz++ {
		copy(velPad[iz*colsP+l:iz*colsP+l+w], velLocal[iz*w:(iz+1)*w])
	}
	haloSend := make([]float64, nz*l)
	haloRecv := make([]float64, nz*l)
	if err := exchangeHalo(c, tagVelocityHalo, velPad, 0, nz, colsP, l, haloSend, haloRecv); err != nil {
		return nil, err
	}

	engine, err := NewEngine(c, layout, velPad, srcLocal, cfg, nt)
	if err != nil {
		return nil, err
	}
	if err := engine.Run(); err != nil {
		return nil, err
	}
	if cfg.Verbose {
		log.Printf("rank %d: %d steps complete", c.Rank(), nt)
	}

	// Gather the outputs on the master: traces land contiguously per
	// block, snapshots reuse the source scatter striding in reverse.
	res := &Result{Rank: c.Rank()}
	var dataBuf, snapBuf []float64
	if c.Rank() == cluster.Master {
		res.Data = sparse.ZerosDense(nx, nt)
		dataBuf = res.Data.Elements
		if !cfg.NoSnapshot {
			res.Snapshot = sparse.ZerosDense(nz, nx, nt)
			snapBuf = res.Snapshot.Elements
		}
	}
	traceViews := make([]cluster.Vector, c.Size())
	traceOffsets := make([]int, c.Size())
	for r, b := range layout.Blocks {
		traceViews[r] = cluster.Contig(b.Count * nt)
		traceOffsets[r] = b.Offset * nt
	}
	if err := c.Gatherv(cluster.Master, tagTrace, engine.Trace(), traceViews, traceOffsets, dataBuf); err != nil {
		return nil, err
	}
	if !cfg.NoSnapshot {
		if err := c.Gatherv(cluster.Master, tagSnapshot, engine.Snapshot(), srcViews, srcOffsets, snapBuf); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// checkedSize multiplies array extents, failing instead of overflowing.
func checkedSize(dims ...int) (int, error) {
	n := 1
	for _, d := range dims {
		if d < 1 {
			return 0, fmt.Errorf("%w: array extent %d", fdtd.ErrInvalidArgument, d)
		}
		if n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: %v doubles exceed addressable memory",
				fdtd.ErrAllocationFailure, dims)
		}
		n *= d
	}
	return n, nil
}
