// Package solver advances the 2-D acoustic wave equation through time over
// a column-partitioned grid, one rank per column block, with CPML absorbing
// boundaries on the lateral edges and the bottom.
package solver

import (
	"github.com/ctessum/sparse"
)

// Config carries the numeric parameters of one propagation run. The same
// Config must be passed to every rank.
type Config struct {
	// DiffOrder is the one-sided sample count of the spatial stencil.
	// Halo width and boundary trimming follow as 2*DiffOrder-1.
	DiffOrder int

	// Boundary is the absorbing layer width in grid cells. Zero disables
	// absorption entirely.
	Boundary int

	// Dz, Dx are grid spacings and Dt the time step, all positive.
	Dz, Dx, Dt float64

	// ReceiverDepth is the depth row recorded into the trace output.
	// Zero records the surface.
	ReceiverDepth int

	// NoSnapshot skips the full-wavefield history, leaving only the
	// recorded trace data.
	NoSnapshot bool

	// Verbose enables per-rank status logging.
	Verbose bool
}

// Result is the outcome of a run as seen by one rank. Data and Snapshot are
// materialized on the master only and nil everywhere else.
type Result struct {
	// Data holds the recorded amplitudes at the receiver depth, nx x nt.
	Data *sparse.DenseArray

	// Snapshot holds the full wavefield history, nz x nx x nt, unless the
	// run was configured with NoSnapshot.
	Snapshot *sparse.DenseArray

	// Rank identifies the process that produced this result.
	Rank int
}

// Message tags for the distinct communication phases of a run.
const (
	tagDims = iota + 1
	tagVelocity
	tagSource
	tagVelocityHalo
	tagHalo
	tagTrace
	tagSnapshot
)
