package partitions

import (
	"fmt"

	"github.com/seisgo/fdtd"
)

// Block is one rank's contiguous column range [Offset, Offset+Count) of the
// global lateral axis.
type Block struct {
	Offset int // First global column owned by the rank
	Count  int // Number of owned columns
}

// Layout is the column-block decomposition of an nz x nx grid across a fixed
// set of ranks. It is a pure function of (nx, nz, numRanks): every rank
// computes the identical layout with no communication.
type Layout struct {
	NX       int // Global lateral extent
	NZ       int // Global depth extent
	NumRanks int

	// Blocks holds one column range per rank. Column counts differ by at
	// most one; the remainder of NX/NumRanks goes to the lowest ranks.
	Blocks []Block

	// Plane counts/displacements describe transfers measured in columns
	// (one ZT-plane per column); the band variants scale by NZ for moving
	// 2-D slabs of a single time level.
	PlaneCounts []int
	PlaneDispls []int
	BandCounts  []int
	BandDispls  []int
}

// NewLayout decomposes the lateral axis into NumRanks contiguous blocks.
func NewLayout(nx, nz, numRanks int) (*Layout, error) {
	if nx < 1 || nz < 1 {
		return nil, fmt.Errorf("%w: grid extents %dx%d, want positive", fdtd.ErrInvalidArgument, nz, nx)
	}
	if numRanks < 1 {
		return nil, fmt.Errorf("%w: %d ranks, want >= 1", fdtd.ErrInvalidArgument, numRanks)
	}
	if numRanks > nx {
		return nil, fmt.Errorf("%w: %d ranks for %d lateral columns", fdtd.ErrPartitionInfeasible, numRanks, nx)
	}

	l := &Layout{
		NX:          nx,
		NZ:          nz,
		NumRanks:    numRanks,
		Blocks:      make([]Block, numRanks),
		PlaneCounts: make([]int, numRanks),
		PlaneDispls: make([]int, numRanks),
		BandCounts:  make([]int, numRanks),
		BandDispls:  make([]int, numRanks),
	}

	avg := nx / numRanks
	rem := nx % numRanks
	offset := 0
	for r := 0; r < numRanks; r++ {
		count := avg
		if r < rem {
			count++
		}
		l.Blocks[r] = Block{Offset: offset, Count: count}
		l.PlaneCounts[r] = count
		l.PlaneDispls[r] = offset
		l.BandCounts[r] = nz * count
		l.BandDispls[r] = nz * offset
		offset += count
	}

	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	return l, nil
}

// Validate checks that the blocks partition [0, NX) exactly: no overlap, no
// gap, and at least one column per rank.
func (l *Layout) Validate() error {
	offset := 0
	for r, b := range l.Blocks {
		if b.Count < 1 {
			return fmt.Errorf("%w: rank %d owns %d columns", fdtd.ErrPartitionInfeasible, r, b.Count)
		}
		if b.Offset != offset {
			return fmt.Errorf("%w: rank %d starts at column %d, want %d",
				fdtd.ErrInvalidArgument, r, b.Offset, offset)
		}
		offset += b.Count
	}
	if offset != l.NX {
		return fmt.Errorf("%w: blocks cover %d of %d columns", fdtd.ErrInvalidArgument, offset, l.NX)
	}
	return nil
}

// MinCount returns the smallest block width. The remainder goes to the
// lowest ranks, so the last block is never larger than any other.
func (l *Layout) MinCount() int {
	return l.Blocks[l.NumRanks-1].Count
}
