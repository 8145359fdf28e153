package inspector

import "errors"

// Sentinel errors for inspector construction.
var (
	// ErrAPIKeyRequired indicates New was called without an API key.
	ErrAPIKeyRequired = errors.New("api key required")

	// ErrInvalidConfig wraps a settings or storage failure in New.
	ErrInvalidConfig = errors.New("invalid inspector configuration")
)
