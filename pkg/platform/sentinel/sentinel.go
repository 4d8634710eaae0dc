package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the service can translate them into domain errors.
//
//   - ErrMalformed: a stored blob exists but cannot be decoded
//   - ErrConflict: an optimistic write lost a race and exhausted its retries
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrMalformed = errors.New("malformed")
	ErrConflict  = errors.New("conflict")
)
