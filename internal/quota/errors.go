package quota

import "errors"

var (
	// ErrQuotaExceeded means the platform's daily publish budget is spent.
	// Distinct from gateway failures: the operator's remedy is to wait.
	ErrQuotaExceeded = errors.New("daily publish limit reached")
)
