package extio

import "errors"

// ErrNoDisks is returned by Open when it cannot infer a positive disk
// count.
var ErrNoDisks = errors.New("extio: disk count must be positive")
