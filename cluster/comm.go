package cluster

import (
	"fmt"

	"github.com/seisgo/fdtd"
)

// Comm is one rank's handle on its World. A Comm is only ever used by the
// goroutine running that rank.
type Comm struct {
	world *World
	rank  int
}

// Rank returns this rank's index in [0, Size).
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks in the group.
func (c *Comm) Size() int { return c.world.size }

// Send delivers a copy of data to rank dst, blocking until dst starts the
// matching Recv or the group aborts.
func (c *Comm) Send(dst, tag int, data []float64) error {
	if dst < 0 || dst >= c.world.size || dst == c.rank {
		return fmt.Errorf("%w: send from rank %d to rank %d", fdtd.ErrInvalidArgument, c.rank, dst)
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	select {
	case c.world.links[c.rank][dst] <- message{tag: tag, data: buf}:
		return nil
	case <-c.world.aborted:
		return c.world.failure()
	}
}

// Recv blocks until a message with the given tag arrives from rank src and
// copies it into buf, whose length must match the transfer exactly.
func (c *Comm) Recv(src, tag int, buf []float64) error {
	if src < 0 || src >= c.world.size || src == c.rank {
		return fmt.Errorf("%w: receive on rank %d from rank %d", fdtd.ErrInvalidArgument, c.rank, src)
	}
	select {
	case m := <-c.world.links[src][c.rank]:
		if m.tag != tag {
			return fmt.Errorf("%w: rank %d expected tag %d from rank %d, got %d",
				fdtd.ErrCommunicationFailure, c.rank, tag, src, m.tag)
		}
		if len(m.data) != len(buf) {
			return fmt.Errorf("%w: rank %d expected %d values from rank %d, got %d",
				fdtd.ErrCommunicationFailure, c.rank, len(buf), src, len(m.data))
		}
		copy(buf, m.data)
		return nil
	case <-c.world.aborted:
		return c.world.failure()
	}
}

// SendsFirst is the deadlock-avoidance policy for pairwise exchanges: in any
// neighbor pair the even rank transmits before receiving while the odd rank
// receives first. Lateral neighbors always differ in parity, so no exchange
// pair can circular-wait.
func SendsFirst(rank, peer int) bool {
	return rank%2 == 0
}

// SendRecv exchanges equal-sized messages with one peer, ordering the two
// blocking calls by the SendsFirst policy.
func (c *Comm) SendRecv(peer, tag int, send, recv []float64) error {
	if SendsFirst(c.rank, peer) {
		if err := c.Send(peer, tag, send); err != nil {
			return err
		}
		return c.Recv(peer, tag, recv)
	}
	if err := c.Recv(peer, tag, recv); err != nil {
		return err
	}
	return c.Send(peer, tag, send)
}
