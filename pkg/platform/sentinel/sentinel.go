package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and transaction runners
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrConflict: transactional conflict (serialization/deadlock); retryable
// - ErrInvalidState: record in wrong state for requested operation
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)
