package table

import "fmt"

// A MalformedError is returned when an instance is structurally invalid.
// Cell and Relation are IDs; a zero Relation means the error is about a cell only.
type MalformedError struct {
	Cell     int
	Relation int
	Reason   string
}

func malformed(cell int, reason string) *MalformedError {
	return &MalformedError{Cell: cell, Reason: reason}
}

func (e *MalformedError) Error() string {
	if e.Relation != 0 {
		return fmt.Sprintf("malformed instance: relation %d, cell %d: %s", e.Relation, e.Cell, e.Reason)
	}
	return fmt.Sprintf("malformed instance: cell %d: %s", e.Cell, e.Reason)
}
