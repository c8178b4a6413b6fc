package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoGroupKeys is returned when a summary is requested without keys.
var ErrNoGroupKeys = errors.New("report: at least one group key is required")

// EmptyPartitionError reports a metric with no defined value for a group,
// e.g. a mean over a pivot cell with no rows.
type EmptyPartitionError struct {
	Metric string
	Key    []string
}

func (e *EmptyPartitionError) Error() string {
	return fmt.Sprintf("report: %s is undefined for empty group (%s)", e.Metric, strings.Join(e.Key, ", "))
}
