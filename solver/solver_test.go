package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisgo/fdtd"
	"github.com/seisgo/fdtd/cluster"
)

func uniformModel(nz, nx int, speed float64) *sparse.DenseArray {
	v := sparse.ZerosDense(nz, nx)
	for i := range v.Elements {
		v.Elements[i] = speed
	}
	return v
}

func maxAbs(vals []float64) float64 {
	peak := 0.0
	for _, v := range vals {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

func TestRickerWavelet(t *testing.T) {
	const (
		freq = 10.0
		dt   = 0.01
		nt   = 30
	)
	w := RickerWavelet(freq, dt, nt)
	require.Len(t, w, nt)

	// The peak sits one period into the trace.
	assert.InDelta(t, 1.0, w[10], 1e-9)
	assert.InDelta(t, w[10], maxAbs(w), 1e-9)
	// The delay makes the onset quiet.
	assert.Less(t, math.Abs(w[0]), 0.01)
}

func TestPointSource(t *testing.T) {
	wavelet := []float64{0.5, 1.0, -0.25}
	s, err := PointSource(4, 6, 5, 2, 3, wavelet)
	require.NoError(t, err)
	require.Equal(t, []int{4, 6, 5}, s.Shape)

	for tt, want := range wavelet {
		assert.Equal(t, want, s.Get(2, 3, tt))
	}
	// The wavelet is zero-padded and every other cell stays empty.
	assert.Equal(t, 0.0, s.Get(2, 3, 4))
	assert.InDelta(t, 0.5+1.0-0.25, s.Sum(), 1e-12)
}

func TestPointSource_Errors(t *testing.T) {
	wavelet := []float64{1}
	testCases := []struct {
		name               string
		nz, nx, nt, iz, ix int
	}{
		{"zero_extent", 0, 6, 5, 0, 0},
		{"depth_outside", 4, 6, 5, 4, 0},
		{"lateral_outside", 4, 6, 5, 0, 6},
		{"negative_cell", 4, 6, 5, -1, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PointSource(tc.nz, tc.nx, tc.nt, tc.iz, tc.ix, wavelet)
			if !errors.Is(err, fdtd.ErrInvalidArgument) {
				t.Errorf("got %v, want ErrInvalidArgument", err)
			}
		})
	}
}

// exchangeHalo fills each rank's ghost columns with the neighbor's outermost
// owned columns and leaves the outer frame of the edge ranks untouched.
func TestExchangeHalo(t *testing.T) {
	const (
		nRows = 3
		w     = 4
		h     = 2
	)
	rowLen := w + 2*h
	world, err := cluster.NewWorld(2)
	require.NoError(t, err)

	val := func(rank, i, j int) float64 { return float64(1000*rank + 10*i + j) }
	fields := make([][]float64, 2)
	err = world.Run(func(c *cluster.Comm) error {
		rank := c.Rank()
		field := make([]float64, nRows*rowLen)
		for i := 0; i < nRows; i++ {
			for j := h; j < h+w; j++ {
				field[i*rowLen+j] = val(rank, i, j)
			}
		}
		fields[rank] = field
		send := make([]float64, nRows*h)
		recv := make([]float64, nRows*h)
		return exchangeHalo(c, 9, field, 0, nRows, rowLen, h, send, recv)
	})
	require.NoError(t, err)

	for i := 0; i < nRows; i++ {
		for k := 0; k < h; k++ {
			// Rank 0's right ghosts hold rank 1's leftmost owned columns
			// and vice versa.
			assert.Equal(t, val(1, i, h+k), fields[0][i*rowLen+rowLen-h+k])
			assert.Equal(t, val(0, i, w+k), fields[1][i*rowLen+k])
			// The outer frame stays zero on both edge ranks.
			assert.Zero(t, fields[0][i*rowLen+k])
			assert.Zero(t, fields[1][i*rowLen+rowLen-h+k])
		}
	}
}

func runForward(t *testing.T, ranks int, velocity, source *sparse.DenseArray, cfg Config) *Result {
	t.Helper()
	world, err := cluster.NewWorld(ranks)
	require.NoError(t, err)
	res, err := Forward(world, velocity, source, cfg)
	require.NoError(t, err)
	return res
}

// Decomposing the grid over more ranks must not change a single bit of the
// output: the overlap columns repeat the identical arithmetic on identical
// values, so the recorded data of a one-rank and a five-rank run agree
// exactly.
func TestForward_PartitionTransparency(t *testing.T) {
	const (
		nz       = 50
		nx       = 50
		nt       = 200
		order    = 3
		boundary = 10
		dz       = 10.0
		dx       = 10.0
		speed    = 1500.0
	)
	dt := 0.3 * dz / (speed * math.Sqrt2)
	velocity := uniformModel(nz, nx, speed)
	wavelet := RickerWavelet(15, dt, nt)
	source, err := PointSource(nz, nx, nt, 0, nx/2, wavelet)
	require.NoError(t, err)

	cfg := Config{DiffOrder: order, Boundary: boundary, Dz: dz, Dx: dx, Dt: dt}
	single := runForward(t, 1, velocity, source, cfg)
	split := runForward(t, 5, velocity, source, cfg)

	require.Equal(t, []int{nx, nt}, single.Data.Shape)
	require.Equal(t, single.Data.Shape, split.Data.Shape)
	require.Equal(t, single.Data.Elements, split.Data.Elements)

	require.Equal(t, []int{nz, nx, nt}, single.Snapshot.Shape)
	require.Equal(t, single.Snapshot.Elements, split.Snapshot.Elements)

	// The wave actually propagated.
	assert.Greater(t, maxAbs(single.Data.Elements), 0.0)
}

// With no absorbing layer and a centered source, the wavefield is mirror
// symmetric about the source column.
func TestForward_LateralSymmetry(t *testing.T) {
	const (
		nz    = 30
		nx    = 41
		nt    = 40
		srcIz = 5
		dz    = 10.0
		speed = 2000.0
	)
	srcIx := nx / 2
	dt := 0.3 * dz / (speed * math.Sqrt2)
	velocity := uniformModel(nz, nx, speed)
	wavelet := RickerWavelet(15, dt, nt)
	source, err := PointSource(nz, nx, nt, srcIz, srcIx, wavelet)
	require.NoError(t, err)

	res := runForward(t, 1, velocity, source, Config{
		DiffOrder: 2, Boundary: 0, Dz: dz, Dx: dz, Dt: dt,
	})

	tol := 1e-9 * (1 + maxAbs(res.Snapshot.Elements))
	for _, tt := range []int{nt / 2, nt - 1} {
		for iz := 0; iz < nz; iz++ {
			for k := 1; k <= srcIx; k++ {
				left := res.Snapshot.Get(iz, srcIx-k, tt)
				right := res.Snapshot.Get(iz, srcIx+k, tt)
				if math.Abs(left-right) > tol {
					t.Fatalf("step %d row %d offset %d: %g vs %g", tt, iz, k, left, right)
				}
			}
		}
	}
}

// The recorded trace is exactly the snapshot row at the receiver depth.
func TestForward_TraceMatchesSnapshotRow(t *testing.T) {
	const (
		nz    = 20
		nx    = 20
		nt    = 50
		depth = 3
		dz    = 10.0
		speed = 1500.0
	)
	dt := 0.3 * dz / (speed * math.Sqrt2)
	velocity := uniformModel(nz, nx, speed)
	wavelet := RickerWavelet(20, dt, nt)
	source, err := PointSource(nz, nx, nt, 0, nx/2, wavelet)
	require.NoError(t, err)

	res := runForward(t, 2, velocity, source, Config{
		DiffOrder: 2, Boundary: 5, Dz: dz, Dx: dz, Dt: dt, ReceiverDepth: depth,
	})

	for ix := 0; ix < nx; ix++ {
		for tt := 0; tt < nt; tt++ {
			if res.Data.Get(ix, tt) != res.Snapshot.Get(depth, ix, tt) {
				t.Fatalf("column %d step %d: trace %g, snapshot %g",
					ix, tt, res.Data.Get(ix, tt), res.Snapshot.Get(depth, ix, tt))
			}
		}
	}
}

func TestForward_NoSnapshot(t *testing.T) {
	const (
		nz = 12
		nx = 16
		nt = 10
	)
	velocity := uniformModel(nz, nx, 1500)
	source, err := PointSource(nz, nx, nt, 0, nx/2, RickerWavelet(20, 1e-3, nt))
	require.NoError(t, err)

	res := runForward(t, 2, velocity, source, Config{
		DiffOrder: 1, Boundary: 3, Dz: 10, Dx: 10, Dt: 1e-3, NoSnapshot: true,
	})
	require.NotNil(t, res.Data)
	assert.Nil(t, res.Snapshot)
	assert.Equal(t, cluster.Master, res.Rank)
}

func TestForward_Validation(t *testing.T) {
	const (
		nz = 10
		nx = 12
		nt = 5
	)
	velocity := uniformModel(nz, nx, 1500)
	source := sparse.ZerosDense(nz, nx, nt)
	valid := Config{DiffOrder: 2, Boundary: 2, Dz: 10, Dx: 10, Dt: 1e-3}

	testCases := []struct {
		name     string
		velocity *sparse.DenseArray
		source   *sparse.DenseArray
		cfg      Config
		want     error
	}{
		{"nil_velocity", nil, source, valid, fdtd.ErrInvalidArgument},
		{"nil_source", velocity, nil, valid, fdtd.ErrInvalidArgument},
		{"velocity_rank", sparse.ZerosDense(nz, nx, 2), source, valid, fdtd.ErrInvalidArgument},
		{"source_rank", velocity, sparse.ZerosDense(nz, nx), valid, fdtd.ErrInvalidArgument},
		{"shape_mismatch", uniformModel(nz, nx-1, 1500), source, valid, fdtd.ErrDimensionMismatch},
		{"zero_order", velocity, source, Config{Boundary: 2, Dz: 10, Dx: 10, Dt: 1e-3}, fdtd.ErrInvalidArgument},
		{"negative_boundary", velocity, source, Config{DiffOrder: 2, Boundary: -1, Dz: 10, Dx: 10, Dt: 1e-3}, fdtd.ErrInvalidArgument},
		{"boundary_too_wide", velocity, source, Config{DiffOrder: 2, Boundary: 7, Dz: 10, Dx: 10, Dt: 1e-3}, fdtd.ErrInvalidArgument},
		{"zero_spacing", velocity, source, Config{DiffOrder: 2, Boundary: 2, Dz: 0, Dx: 10, Dt: 1e-3}, fdtd.ErrInvalidArgument},
		{"zero_timestep", velocity, source, Config{DiffOrder: 2, Boundary: 2, Dz: 10, Dx: 10}, fdtd.ErrInvalidArgument},
		{"receiver_outside", velocity, source, Config{DiffOrder: 2, Boundary: 2, Dz: 10, Dx: 10, Dt: 1e-3, ReceiverDepth: nz}, fdtd.ErrInvalidArgument},
	}
	world, err := cluster.NewWorld(2)
	require.NoError(t, err)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Forward(world, tc.velocity, tc.source, tc.cfg)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

// The column partition must leave every rank at least one full halo of
// owned columns; otherwise the run is refused before any rank starts.
func TestForward_PartitionInfeasible(t *testing.T) {
	t.Run("MoreRanksThanColumns", func(t *testing.T) {
		world, err := cluster.NewWorld(7)
		require.NoError(t, err)
		velocity := uniformModel(5, 5, 1500)
		source := sparse.ZerosDense(5, 5, 4)
		_, err = Forward(world, velocity, source, Config{DiffOrder: 1, Boundary: 2, Dz: 10, Dx: 10, Dt: 1e-3})
		if !errors.Is(err, fdtd.ErrPartitionInfeasible) {
			t.Fatalf("got %v, want ErrPartitionInfeasible", err)
		}
	})
	t.Run("BlockNarrowerThanHalo", func(t *testing.T) {
		world, err := cluster.NewWorld(4)
		require.NoError(t, err)
		velocity := uniformModel(8, 8, 1500)
		source := sparse.ZerosDense(8, 8, 4)
		_, err = Forward(world, velocity, source, Config{DiffOrder: 3, Boundary: 4, Dz: 10, Dx: 10, Dt: 1e-3})
		if !errors.Is(err, fdtd.ErrPartitionInfeasible) {
			t.Fatalf("got %v, want ErrPartitionInfeasible", err)
		}
	})
}

func TestCheckedSize_Overflow(t *testing.T) {
	if _, err := checkedSize(math.MaxInt/2, 3); !errors.Is(err, fdtd.ErrAllocationFailure) {
		t.Errorf("got %v, want ErrAllocationFailure", err)
	}
	n, err := checkedSize(4, 5, 6)
	require.NoError(t, err)
	assert.Equal(t, 120, n)
}
