package solver

import (
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/seisgo/fdtd"
	"github.com/seisgo/fdtd/cluster"
	"github.com/seisgo/fdtd/partitions"
	"github.com/seisgo/fdtd/pml"
	"github.com/seisgo/fdtd/stencil"
)

// Engine advances one rank's column block of the wavefield through time.
//
// The wavefield lives on a padded local grid of (nz+2l) x (w+2l) cells,
// l = 2*DiffOrder-1: the depth pad rows stay zero (absorbing frame), the
// lateral pad columns are either the global zero frame (edge ranks) or halo
// columns refreshed from the neighbors every step. All scratch storage is
// allocated once at construction and the three time levels rotate by
// pointer swap, so stepping allocates nothing.
//
// Per step and axis q with attenuation b and derivative operator D:
//
//	Phi_q <- b*Phi_q + (b-1)*D(p)     A_q = D(p) + Phi_q
//	Psi_q <- b*Psi_q + (b-1)*D(A_q)   P_q = D(A_q) + Psi_q
//	p_new = (v*dt)^2 * (P_z + P_x + s_t) + 2*p_cur - p_old
//
// Attenuation on the staggered intermediate grids is evaluated at the
// nearest interior cell of the global grid, a pure function of the global
// index, so ranks covering the same columns compute identical values and
// the decomposition stays numerically transparent.
type Engine struct {
	comm *cluster.Comm
	cfg  Config

	nz, nx, nt int
	block      partitions.Block
	order      int
	l          int
	coeff      []float64

	rowsP, colsP int // padded field extents: nz+2l, w+2l

	old, cur, next *sparse.DenseArray

	// CPML memory variables and their per-step results.
	zPhi, zA *sparse.DenseArray // (nz+l) x w
	zPsi, zP *sparse.DenseArray // nz x w
	xPhi, xA *sparse.DenseArray // nz x (w+l)
	xPsi, xP *sparse.DenseArray // nz x w

	// Attenuation factors exp(-d*dt) on the grids they apply to.
	zbExt *sparse.DenseArray // (nz+l) x w
	zbInt *sparse.DenseArray // nz x w
	xbExt *sparse.DenseArray // nz x (w+l)
	xbInt *sparse.DenseArray // nz x w

	vdtSq    []float64 // nz*w, (v*dt)^2 per owned cell
	srcLocal []float64 // nz*w*nt, this rank's source block

	// Reused per-step scratch.
	zIn, zD1, zD2      *sparse.DenseArray
	xD1, xD2           *sparse.DenseArray
	haloSend, haloRecv []float64

	trace []float64 // w*nt recorded receiver-row amplitudes
	snap  []float64 // nz*w*nt wavefield history, nil when disabled
}

// NewEngine builds the per-rank stepping state. velPad is the rank's wave
// speed block padded by l halo columns per side (nz rows of w+2l values);
// srcLocal is the contiguous nz x w x nt source block.
func NewEngine(c *cluster.Comm, layout *partitions.Layout, velPad, srcLocal []float64,
	cfg Config, nt int) (*Engine, error) {

	nz, nx := layout.NZ, layout.NX
	blk := layout.Blocks[c.Rank()]
	w := blk.Count
	order := cfg.DiffOrder
	l := stencil.HaloWidth(order)

	if len(velPad) != nz*(w+2*l) {
		return nil, fmt.Errorf("%w: padded wave-speed block holds %d values, want %d",
			fdtd.ErrDimensionMismatch, len(velPad), nz*(w+2*l))
	}
	if len(srcLocal) != nz*w*nt {
		return nil, fmt.Errorf("%w: source block holds %d values, want %d",
			fdtd.ErrDimensionMismatch, len(srcLocal), nz*w*nt)
	}

	coeff, err := stencil.Coefficients(order, stencil.Staggered)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		comm:     c,
		cfg:      cfg,
		nz:       nz,
		nx:       nx,
		nt:       nt,
		block:    blk,
		order:    order,
		l:        l,
		coeff:    coeff,
		rowsP:    nz + 2*l,
		colsP:    w + 2*l,
		srcLocal: srcLocal,
	}

	e.old = sparse.ZerosDense(e.rowsP, e.colsP)
	e.cur = sparse.ZerosDense(e.rowsP, e.colsP)
	e.next = sparse.ZerosDense(e.rowsP, e.colsP)

	e.zPhi = sparse.ZerosDense(nz+l, w)
	e.zA = sparse.ZerosDense(nz+l, w)
	e.zPsi = sparse.ZerosDense(nz, w)
	e.zP = sparse.ZerosDense(nz, w)
	e.xPhi = sparse.ZerosDense(nz, w+l)
	e.xA = sparse.ZerosDense(nz, w+l)
	e.xPsi = sparse.ZerosDense(nz, w)
	e.xP = sparse.ZerosDense(nz, w)

	e.zIn = sparse.ZerosDense(e.rowsP, w)
	e.zD1 = sparse.ZerosDense(nz+l, w)
	e.zD2 = sparse.ZerosDense(nz, w)
	e.xD1 = sparse.ZerosDense(nz, w+l)
	e.xD2 = sparse.ZerosDense(nz, w)
	e.haloSend = make([]float64, nz*l)
	e.haloRecv = make([]float64, nz*l)

	if err := e.buildAttenuation(velPad); err != nil {
		return nil, err
	}

	velAt := func(iz, j int) float64 { return velPad[iz*e.colsP+l+j] }
	e.vdtSq = make([]float64, nz*w)
	for iz := 0; iz < nz; iz++ {
		for j := 0; j < w; j++ {
			v := velAt(iz, j) * cfg.Dt
			e.vdtSq[iz*w+j] = v * v
		}
	}

	e.trace = make([]float64, w*nt)
	if !cfg.NoSnapshot {
		e.snap = make([]float64, nz*w*nt)
	}
	return e, nil
}

// buildAttenuation derives the four attenuation grids from the padded wave
// speed block. The staggered (extended) grids index the nearest interior
// cell of the global grid, clamped at the domain edges.
func (e *Engine) buildAttenuation(velPad []float64) error {
	nz, w := e.nz, e.block.Count
	off := e.block.Offset
	l, o := e.l, e.order
	cfg := e.cfg

	// Wave speed at a global column, read out of the halo-extended block.
	velGlobal := func(iz, g int) float64 { return velPad[iz*e.colsP+g-off+l] }

	// Owned columns.
	velOwn := sparse.ZerosDense(nz, w)
	for iz := 0; iz < nz; iz++ {
		for j := 0; j < w; j++ {
			velOwn.Elements[iz*w+j] = velGlobal(iz, off+j)
		}
	}
	ownRegion := partitions.Classify(off, w, cfg.Boundary, e.nx)
	dxOwn, err := pml.LateralProfile(velOwn, ownRegion,
		func(j int) int { return off + j }, e.nx, cfg.Boundary, cfg.Dx)
	if err != nil {
		return err
	}
	e.xbInt = pml.Attenuation(dxOwn, cfg.Dt)

	dzOwn, err := pml.DepthProfile(velOwn, func(i int) int { return i },
		nz, cfg.Boundary, cfg.Dz)
	if err != nil {
		return err
	}
	e.zbInt = pml.Attenuation(dzOwn, cfg.Dt)

	// Staggered lateral window: column j sits between global columns
	// off+j-o and off+j-o+1; attenuation comes from the latter, clamped
	// into the domain.
	extCol := func(j int) int { return clamp(off+j-o+1, 0, e.nx-1) }
	velExt := sparse.ZerosDense(nz, w+l)
	for iz := 0; iz < nz; iz++ {
		for j := 0; j < w+l; j++ {
			velExt.Elements[iz*(w+l)+j] = velGlobal(iz, extCol(j))
		}
	}
	extFirst := extCol(0)
	extLast := extCol(w + l - 1)
	extRegion := partitions.Classify(extFirst, extLast-extFirst+1, cfg.Boundary, e.nx)
	dxExt, err := pml.LateralProfile(velExt, extRegion, extCol, e.nx, cfg.Boundary, cfg.Dx)
	if err != nil {
		return err
	}
	e.xbExt = pml.Attenuation(dxExt, cfg.Dt)

	// Staggered depth window, same clamping along z.
	extRow := func(i int) int { return clamp(i-o+1, 0, nz-1) }
	velZExt := sparse.ZerosDense(nz+l, w)
	for i := 0; i < nz+l; i++ {
		for j := 0; j < w; j++ {
			velZExt.Elements[i*w+j] = velGlobal(extRow(i), off+j)
		}
	}
	dzExt, err := pml.DepthProfile(velZExt, extRow, nz, cfg.Boundary, cfg.Dz)
	if err != nil {
		return err
	}
	e.zbExt = pml.Attenuation(dzExt, cfg.Dt)
	return nil
}

// Step advances the wavefield by one time level: spatial derivatives, CPML
// memory-variable updates, the leap-frog combine with source injection,
// halo exchange of the freshly computed level, level rotation and trace/
// snapshot recording. Steps are strictly sequential; the halo exchange
// keeps all ranks in lock-step.
func (e *Engine) Step(t int) error {
	if t < 0 || t >= e.nt {
		return fmt.Errorf("%w: time index %d outside [0,%d)", fdtd.ErrInvalidArgument, t, e.nt)
	}
	nz, w := e.nz, e.block.Count
	l := e.l
	cur := e.cur

	// Depth derivative path over the owned columns, all padded rows.
	for i := 0; i < e.rowsP; i++ {
		copy(e.zIn.Elements[i*w:(i+1)*w], cur.Elements[i*e.colsP+l:i*e.colsP+l+w])
	}
	if err := stencil.DiffInto(e.zD1, e.zIn, e.coeff, e.cfg.Dz, 1); err != nil {
		return err
	}
	for i, d := range e.zD1.Elements {
		b := e.zbExt.Elements[i]
		e.zPhi.Elements[i] = b*e.zPhi.Elements[i] + (b-1)*d
		e.zA.Elements[i] = d + e.zPhi.Elements[i]
	}
	if err := stencil.DiffInto(e.zD2, e.zA, e.coeff, e.cfg.Dz, 1); err != nil {
		return err
	}
	for i, d := range e.zD2.Elements {
		b := e.zbInt.Elements[i]
		e.zPsi.Elements[i] = b*e.zPsi.Elements[i] + (b-1)*d
		e.zP.Elements[i] = d + e.zPsi.Elements[i]
	}

	// Lateral derivative path over the interior rows, all padded columns.
	xIn := &sparse.DenseArray{
		Shape:    []int{nz, e.colsP},
		Elements: cur.Elements[l*e.colsP : (l+nz)*e.colsP],
	}
	if err := stencil.DiffInto(e.xD1, xIn, e.coeff, e.cfg.Dx, 2); err != nil {
		return err
	}
	for i, d := range e.xD1.Elements {
		b := e.xbExt.Elements[i]
		e.xPhi.Elements[i] = b*e.xPhi.Elements[i] + (b-1)*d
		e.xA.Elements[i] = d + e.xPhi.Elements[i]
	}
	if err := stencil.DiffInto(e.xD2, e.xA, e.coeff, e.cfg.Dx, 2); err != nil {
		return err
	}
	for i, d := range e.xD2.Elements {
		b := e.xbInt.Elements[i]
		e.xPsi.Elements[i] = b*e.xPsi.Elements[i] + (b-1)*d
		e.xP.Elements[i] = d + e.xPsi.Elements[i]
	}

	// Leap-frog combine with source injection over the owned block.
	for iz := 0; iz < nz; iz++ {
		rowP := (l+iz)*e.colsP + l
		rowI := iz * w
		for j := 0; j < w; j++ {
			s := e.srcLocal[(rowI+j)*e.nt+t]
			e.next.Elements[rowP+j] = e.vdtSq[rowI+j]*(e.zP.Elements[rowI+j]+e.xP.Elements[rowI+j]+s) +
				2*cur.Elements[rowP+j] - e.old.Elements[rowP+j]
		}
	}

	if err := exchangeHalo(e.comm, tagHalo, e.next.Elements,
		l, nz, e.colsP, l, e.haloSend, e.haloRecv); err != nil {
		return err
	}

	// Rotate time levels; the retired level becomes next step's target.
	e.old, e.cur, e.next = e.cur, e.next, e.old

	rowP := (l+e.cfg.ReceiverDepth)*e.colsP + l
	for j := 0; j < w; j++ {
		e.trace[j*e.nt+t] = e.cur.Elements[rowP+j]
	}
	if e.snap != nil {
		for iz := 0; iz < nz; iz++ {
			base := (l+iz)*e.colsP + l
			for j := 0; j < w; j++ {
				e.snap[(iz*w+j)*e.nt+t] = e.cur.Elements[base+j]
			}
		}
	}
	return nil
}

// Run executes all nt time steps. An FDTD run has no early termination.
func (e *Engine) Run() error {
	for t := 0; t < e.nt; t++ {
		if err := e.Step(t); err != nil {
			return err
		}
	}
	return nil
}

// Trace returns the local receiver recording, w x nt, column-major in time
// (each owned column's nt samples are contiguous).
func (e *Engine) Trace() []float64 { return e.trace }

// Snapshot returns the local wavefield history, nz x w x nt, or nil when
// the run was configured with NoSnapshot.
func (e *Engine) Snapshot() []float64 { return e.snap }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
