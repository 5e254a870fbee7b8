package grid

import (
	"errors"
	"fmt"
)

// ErrGridMismatch is returned when a Field is used with a Grid other than the
// one it was defined on.
var ErrGridMismatch = errors.New("field is not defined on this grid")

// InvalidGeometryError reports malformed input geometry. It is never retried;
// the caller must fix the input.
type InvalidGeometryError struct {
	Cell   int // offending cell, -1 when not tied to a single cell
	Layer  int // offending layer, -1 when not tied to a layer
	Reason string
}

func (e *InvalidGeometryError) Error() string {
	switch {
	case e.Cell >= 0 && e.Layer >= 0:
		return fmt.Sprintf("invalid geometry at cell %d layer %d: %s", e.Cell, e.Layer, e.Reason)
	case e.Cell >= 0:
		return fmt.Sprintf("invalid geometry at cell %d: %s", e.Cell, e.Reason)
	default:
		return "invalid geometry: " + e.Reason
	}
}

func invalidCell(cell int, format string, args ...interface{}) error {
	return &InvalidGeometryError{Cell: cell, Layer: -1, Reason: fmt.Sprintf(format, args...)}
}

func invalidLayer(cell, layer int, format string, args ...interface{}) error {
	return &InvalidGeometryError{Cell: cell, Layer: layer, Reason: fmt.Sprintf(format, args...)}
}

func invalidGrid(format string, args ...interface{}) error {
	return &InvalidGeometryError{Cell: -1, Layer: -1, Reason: fmt.Sprintf(format, args...)}
}
