package writegate

import "errors"

// ErrMissingCounter is returned by New when a count-bounded resource has no
// registered Counter.
var ErrMissingCounter = errors.New("writegate: missing usage counter")
