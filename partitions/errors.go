package partitions

import (
	"fmt"
)

// DisconnectedPartitionError reports a partition whose cells do not form one
// face-connected region
type DisconnectedPartitionError struct {
	Partition  int
	Components int   // number of connected pieces found
	Cells      []int // grid cells of every piece but the largest
}

func (e *DisconnectedPartitionError) Error() string {
	if e.Partition < 0 {
		return fmt.Sprintf("active cells form %d disconnected regions, more than the requested partitions",
			e.Components)
	}
	return fmt.Sprintf("partition %d is split into %d disconnected pieces (%d stray cells)",
		e.Partition, e.Components, len(e.Cells))
}

// InfeasibleBalanceError reports that no attempt met the balance tolerance.
// Weights are those of the best attempt.
type InfeasibleBalanceError struct {
	NumPartitions int
	Tolerance     float64
	Weights       []int
	Mean          float64
	Attempts      int
}

func (e *InfeasibleBalanceError) Error() string {
	if len(e.Weights) == 0 {
		return fmt.Sprintf("cannot balance %d partitions within %.3g", e.NumPartitions, e.Tolerance)
	}
	lo, hi := e.Weights[0], e.Weights[0]
	for _, w := range e.Weights {
		lo, hi = min(lo, w), max(hi, w)
	}
	return fmt.Sprintf("cannot balance %d partitions within %.3g after %d attempts: weights %d..%d around mean %.4g",
		e.NumPartitions, e.Tolerance, e.Attempts, lo, hi, e.Mean)
}
