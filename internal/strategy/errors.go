package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable marks a run-level failure to obtain bars.
	// No partial result is produced when it occurs.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrConfiguration marks a rejected policy or request. It is returned
	// before any screening work starts.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnknownBucket is returned for buckets outside 0..MaxBucket.
	ErrUnknownBucket = fmt.Errorf("%w: unknown bucket", ErrConfiguration)
)
