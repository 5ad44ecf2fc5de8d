package types

import "errors"

// Error taxonomy for retrieval. Non-fatal conditions are collected as
// warnings on the response; only the fatal members below are returned as
// errors from the orchestrator.
var (
	// ErrBackendUnavailable marks one retrieval path as down. The
	// orchestrator degrades and continues with the other path.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrAllBackendsUnavailable is fatal for the request: every retrieval
	// path errored.
	ErrAllBackendsUnavailable = errors.New("all retrieval backends unavailable")

	// ErrConceptNotFound is reported per seed as a warning; traversal
	// continues with the remaining seeds.
	ErrConceptNotFound = errors.New("concept not found")

	// ErrInvalidScope rejects a request whose source or subject filter
	// names nothing in the library. Raised before any backend work.
	ErrInvalidScope = errors.New("invalid scope filter")

	// ErrSynthesisBackend marks a delegated synthesis failure. The
	// selector falls back to rule-based synthesis with a warning.
	ErrSynthesisBackend = errors.New("synthesis backend error")
)
