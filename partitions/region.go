package partitions

import "fmt"

// Region classifies a column window against the absorbing frame of the
// global domain. The classification replaces per-side conditional trees in
// the damping-profile construction: a window is computed once into one of
// four closed cases and consumed uniformly afterwards.
type Region int

const (
	// Interior windows touch neither absorbing side.
	Interior Region = iota

	// Left windows overlap the left absorbing region only.
	Left

	// Right windows overlap the right absorbing region only.
	Right

	// Straddling windows overlap both absorbing regions, which happens
	// for narrow domains split across few ranks.
	Straddling
)

func (r Region) String() string {
	switch r {
	case Interior:
		return "interior"
	case Left:
		return "left"
	case Right:
		return "right"
	case Straddling:
		return "straddling"
	}
	return fmt.Sprintf("Region(%d)", int(r))
}

// TouchesLeft reports whether the window overlaps the left absorbing region.
func (r Region) TouchesLeft() bool { return r == Left || r == Straddling }

// TouchesRight reports whether the window overlaps the right absorbing region.
func (r Region) TouchesRight() bool { return r == Right || r == Straddling }

// Classify places the column window [offset, offset+count) relative to the
// absorbing regions of width boundary at each lateral edge of [0, nx). The
// result is total: windows narrower than the boundary width classify the
// same way as wide ones.
func Classify(offset, count, boundary, nx int) Region {
	left := offset < boundary
	right := offset+count > nx-boundary
	switch {
	case left && right:
		return Straddling
	case left:
		return Left
	case right:
		return Right
	}
	return Interior
}
