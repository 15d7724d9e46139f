package cache

import "errors"

// ErrNotFound is a sentinel for "no value exists". GetOrLoad does not
// return it: a not-found loader result comes back as a Result with
// Found == false and a nil error.
var ErrNotFound = errors.New("cache: value not found")

// ErrLockUnavailable is returned when DisableLockTimeoutFallback is set and
// a strategy could not acquire the distributed lock within its configured
// retry budget.
var ErrLockUnavailable = errors.New("cache: distributed lock unavailable")

// errDecodeMiss is an internal sentinel used to signal that a stored value
// could not be decoded into the requested type and should be treated as a
// cache miss rather than an error.
var errDecodeMiss = errors.New("cache: decode miss")

// errStoreMiss is the internal sentinel a RemoteStore returns for "key
// absent". It is never returned from exported functions.
var errStoreMiss = errors.New("cache: store miss")
