// Package fdtd implements a distributed explicit finite-difference
// time-domain solver for the 2-D acoustic wave equation with convolutional
// perfectly-matched-layer (CPML) absorbing boundaries, intended as the
// forward/adjoint propagation kernel of seismic-imaging workflows.
//
// The domain is decomposed by columns across a fixed set of cooperating
// ranks. Subpackages:
//
//	stencil    - finite-difference coefficients and the centered
//	             difference operator
//	pml        - CPML damping profiles and attenuation factors
//	partitions - deterministic column-block domain decomposition
//	cluster    - explicit rank group with blocking point-to-point and
//	             strided collective transfers
//	solver     - the distributed time-stepping engine and the Forward
//	             entry point
//
// The root package carries the error taxonomy shared by all subpackages.
package fdtd
