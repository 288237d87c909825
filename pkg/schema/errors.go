package schema

import (
	"fmt"
	"strings"
)

// SchemaError is returned when a required column is missing from a table
// after header normalization, or appears more than once.
type SchemaError struct {
	Path       string
	Missing    []string
	Duplicated []string
	Available  []string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema error in %s:", e.Path)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " missing required columns %v", e.Missing)
	}
	if len(e.Duplicated) > 0 {
		if len(e.Missing) > 0 {
			b.WriteString(";")
		}
		fmt.Fprintf(&b, " duplicated columns %v", e.Duplicated)
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, "\nAvailable columns: %v", e.Available)
	}
	return b.String()
}

// InputError is returned when a stage input lacks the fields it derives
// from, or holds a value that violates the upstream table's invariant.
type InputError struct {
	Path   string
	Line   int
	Column string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	msg := fmt.Sprintf("input error in %s", loc)
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %s)", e.Column)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InputError) Unwrap() error { return e.Err }

// RangeError is returned when a degree-count row cannot be placed on a
// logarithmic axis.
type RangeError struct {
	Path   string
	Line   int
	Degree int
	Count  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range error in %s:%d: degree=%d count=%d; log-scale axes need values > 0\nHint: set render.drop_nonpositive to skip such rows", e.Path, e.Line, e.Degree, e.Count)
}
