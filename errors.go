package fdtd

import "errors"

// Errors shared by all solver subpackages. Every one of them is fatal at the
// point of detection: the run does not retry or degrade, and the cluster
// layer aborts the whole rank group so no rank stays blocked in a collective.
var (
	// ErrInvalidArgument indicates a bad parameter to a pure numeric
	// routine (unknown stencil kind, non-positive spacing, an array too
	// short for the requested difference order).
	ErrInvalidArgument = errors.New("fdtd: invalid argument")

	// ErrDimensionMismatch indicates grids that must share a shape do not.
	ErrDimensionMismatch = errors.New("fdtd: dimension mismatch")

	// ErrPartitionInfeasible indicates a column decomposition that cannot
	// work: more ranks than lateral grid columns, or a block too narrow
	// for the stencil's neighbor exchange.
	ErrPartitionInfeasible = errors.New("fdtd: partition infeasible")

	// ErrCommunicationFailure indicates a transport-level failure during
	// scatter, halo exchange or gather, including a group abort triggered
	// by another rank.
	ErrCommunicationFailure = errors.New("fdtd: communication failure")

	// ErrAllocationFailure indicates a buffer whose requested size is
	// invalid or does not fit in an int.
	ErrAllocationFailure = errors.New("fdtd: allocation failure")
)
