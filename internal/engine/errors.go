package engine

import "errors"

// Error categories. Every error returned by this package wraps exactly one
// of these, so callers can branch with errors.Is.
var (
	// ErrConfiguration reports contradictory or missing construction options.
	ErrConfiguration = errors.New("configuration error")

	// ErrTopologyMismatch reports a topology the engine cannot accept: a
	// missing property, an out-of-range value or a schema mismatch.
	ErrTopologyMismatch = errors.New("topology mismatch")

	// ErrRuntimeBounds reports an out-of-range argument to a simulation call.
	// The engine is left in its pre-call state.
	ErrRuntimeBounds = errors.New("runtime bounds error")
)
