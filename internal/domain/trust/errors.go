package trust

import "errors"

// Sentinel kinds for trust errors.
var (
	ErrTrustNotEstablished = errors.New("trust not established")
)
