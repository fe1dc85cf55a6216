package store

import stdErrors "errors"

// ErrStoreClosed is returned when attempting to perform operations on a
// closed store handle.
var ErrStoreClosed = stdErrors.New("operation failed: cannot access closed store")
