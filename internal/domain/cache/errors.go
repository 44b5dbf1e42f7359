package cache

import "errors"

// ErrEmptyKey is returned for blank keys; such entries are never cached.
var ErrEmptyKey = errors.New("cache key is empty")
