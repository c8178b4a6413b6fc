package dataset

import (
	"fmt"
	"strings"
)

// SchemaError reports every required column absent from a table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// TypeCoercionError reports a cell that cannot be read as its column's type.
// Row is 1-based over data rows (the header is not counted); 0 means the
// column as a whole has the wrong type.
type TypeCoercionError struct {
	Column string
	Row    int
	Value  string
	Want   Type
	Reason string
}

func (e *TypeCoercionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dataset: column %q", e.Column)
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d: cannot read %q as %s", e.Row, e.Value, e.Want)
	} else {
		fmt.Fprintf(&b, ": values are not %s", e.Want)
	}
	if e.Reason != "" {
		b.WriteString(" (" + e.Reason + ")")
	}
	return b.String()
}
