package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored records, not validation
// failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: unique constraint hit (certificate numbers, stage records)
// - ErrInvalidState: record in wrong state for the requested mutation
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, unknown indicator codes), use
// pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
