package sequence

import "errors"

// ErrNoDisks is returned by the default constructor when it cannot infer
// a positive disk count.
var ErrNoDisks = errors.New("sequence: disk count must be positive")
