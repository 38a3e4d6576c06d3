package trafficlight

import "fmt"

// ShapeError is returned when a model output cannot be interpreted as detector rows.
type ShapeError struct {
	Shape  []int
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected detector output %v: %s", e.Shape, e.Reason)
}

// LabelLookupError is returned when an index falls outside the table it refers to.
type LabelLookupError struct {
	Index int
	Size  int
}

func (e *LabelLookupError) Error() string {
	return fmt.Sprintf("index %d out of range for table of size %d", e.Index, e.Size)
}
