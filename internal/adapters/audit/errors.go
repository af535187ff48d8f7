package audit

import "errors"

// Sentinel kinds for audit errors.
var (
	ErrSerializeDetails = errors.New("serialize audit details failed")
	ErrUnknownQueryKind = errors.New("unknown audit query kind")
)
