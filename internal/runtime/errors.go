package runtime

import "errors"

// ErrDatasetCapacity is returned when every open dataset slot is taken.
var ErrDatasetCapacity = errors.New("runtime: open dataset limit reached")
