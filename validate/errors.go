package validate

import (
	"fmt"

	"github.com/google/uuid"
)

// MissingValueError lists active cells of a field that hold neither a value
// nor an explicit no-data marker
type MissingValueError struct {
	Field string
	Layer int
	Cells []int
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("field %q layer %d: %d active cells without a value or no-data marker, first %d",
		e.Field, e.Layer, len(e.Cells), e.Cells[0])
}

// ConservationViolationError reports a target total that drifted from the
// source total beyond the tolerance. Cells lists the defined source cells not
// fully covered by the target, when overlap records were available.
type ConservationViolationError struct {
	Field       string
	Layer       int
	Component   int
	SourceTotal float64
	TargetTotal float64
	Residual    float64 // |TargetTotal-SourceTotal| / max(|SourceTotal|, |TargetTotal|)
	Cells       []int
}

func (e *ConservationViolationError) Error() string {
	s := fmt.Sprintf("field %q layer %d component %d not conserved: source %.10g, target %.10g, relative residual %.3g",
		e.Field, e.Layer, e.Component, e.SourceTotal, e.TargetTotal, e.Residual)
	if len(e.Cells) > 0 {
		s += fmt.Sprintf(" (%d source cells not fully covered)", len(e.Cells))
	}
	return s
}

// AssignmentError reports cells owned by more than one partition and active
// cells owned by none
type AssignmentError struct {
	Duplicated []int
	Missing    []int
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("partition assignment: %d cells in several partitions, %d active cells in none",
		len(e.Duplicated), len(e.Missing))
}

// ExchangeMismatchError compares the exchange map with the faces actually cut
// by the assignment. Faces are (lower cell, higher cell) pairs.
type ExchangeMismatchError struct {
	Missing    [][2]int // cut faces absent from the map
	Duplicated [][2]int // faces listed more than once
	Unexpected [][2]int // entries that are not cut faces or carry wrong partitions
}

func (e *ExchangeMismatchError) Error() string {
	return fmt.Sprintf("exchange map: %d cut faces missing, %d duplicated, %d unexpected",
		len(e.Missing), len(e.Duplicated), len(e.Unexpected))
}

// RunMismatchError reports an assignment and exchange map that did not come
// from the same partitioning run
type RunMismatchError struct {
	Result, Assignment, Exchange uuid.UUID
}

func (e *RunMismatchError) Error() string {
	return fmt.Sprintf("partition result %s mixes assignment %s and exchange map %s",
		e.Result, e.Assignment, e.Exchange)
}
