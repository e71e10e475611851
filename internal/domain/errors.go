package domain

import "fmt"

// InputError reports dataset content that cannot be used: a missing file,
// a missing column, or an unparseable field. Row is the 1-based data row,
// 0 when the whole file is at fault.
type InputError struct {
	File  string
	Row   int
	Field string
	Msg   string
}

func (e *InputError) Error() string {
	switch {
	case e.Row > 0 && e.Field != "":
		return fmt.Sprintf("input error: %s row %d field %q: %s", e.File, e.Row, e.Field, e.Msg)
	case e.Row > 0:
		return fmt.Sprintf("input error: %s row %d: %s", e.File, e.Row, e.Msg)
	default:
		return fmt.Sprintf("input error: %s: %s", e.File, e.Msg)
	}
}

// StateError reports simulation state that violates a structural invariant
// (capacity overflow, a pickup on a frozen route, an order owned by two
// drivers). It is fatal for the run; Dump carries a diagnostic snapshot of
// the offending state.
type StateError struct {
	DriverID string
	Detail   string
	Dump     string
}

func (e *StateError) Error() string {
	if e.DriverID == "" {
		return fmt.Sprintf("state corruption: %s", e.Detail)
	}
	return fmt.Sprintf("state corruption: driver %s: %s", e.DriverID, e.Detail)
}
