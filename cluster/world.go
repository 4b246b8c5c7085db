// Package cluster provides the explicit process-group context for the
// distributed solver: a fixed set of ranks with blocking point-to-point
// messages, strided collective transfers and a group-wide abort.
//
// Ranks run as goroutines inside one process. Every directed rank pair owns
// an unbuffered channel, so Send and Recv rendezvous the way blocking MPI
// point-to-point calls do, and the deadlock-avoidance parity policy is
// exercised for real.
package cluster

import (
	"fmt"
	"sync"

	"github.com/seisgo/fdtd"
)

// Master is the coordinating rank. It owns the full-size input and output
// arrays; all other ranks hold only their local blocks.
const Master = 0

type message struct {
	tag  int
	data []float64
}

// World is a group of cooperating ranks. It is created once at process
// start and passed explicitly to everything that communicates; there is no
// hidden global state.
type World struct {
	size  int
	links [][]chan message // links[src][dst]

	abortOnce sync.Once
	aborted   chan struct{}
	cause     error
	causeRank int
}

// NewWorld creates a group of size ranks.
func NewWorld(size int) (*World, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: world size %d, want >= 1", fdtd.ErrInvalidArgument, size)
	}
	links := make([][]chan message, size)
	for src := range links {
		links[src] = make([]chan message, size)
		for dst := range links[src] {
			links[src][dst] = make(chan message)
		}
	}
	return &World{size: size, links: links, aborted: make(chan struct{})}, nil
}

// Size returns the number of ranks in the group.
func (w *World) Size() int { return w.size }

// Comm returns the communicator handle of one rank.
func (w *World) Comm(rank int) (*Comm, error) {
	if rank < 0 || rank >= w.size {
		return nil, fmt.Errorf("%w: rank %d outside world of size %d", fdtd.ErrInvalidArgument, rank, w.size)
	}
	return &Comm{world: w, rank: rank}, nil
}

// Abort terminates the whole group. Every rank blocked in a transfer fails
// with ErrCommunicationFailure instead of waiting forever on a dead peer;
// later transfers fail immediately. Only the first call takes effect.
func (w *World) Abort(rank int, cause error) {
	w.abortOnce.Do(func() {
		w.cause = cause
		w.causeRank = rank
		close(w.aborted)
	})
}

// failure builds the error returned by transfers interrupted by an abort.
// Callers only reach it after observing the aborted channel closed, which
// orders the cause write before the read.
func (w *World) failure() error {
	return fmt.Errorf("%w: group aborted by rank %d: %v",
		fdtd.ErrCommunicationFailure, w.causeRank, w.cause)
}

// Run launches fn on every rank and waits for the group to finish. The
// execution model is single-program-multiple-data: all ranks run the same
// function over their own data. The first rank to fail aborts the group and
// its error is returned.
func (w *World) Run(fn func(*Comm) error) error {
	var wg sync.WaitGroup
	for r := 0; r < w.size; r++ {
		c := &Comm{world: w, rank: r}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(c); err != nil {
				w.Abort(c.rank, err)
			}
		}()
	}
	wg.Wait()

	select {
	case <-w.aborted:
		return w.cause
	default:
		return nil
	}
}
