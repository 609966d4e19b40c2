package memory

import "errors"

var (
	// ErrIndexUnavailable indicates the vector index failed to initialize;
	// the service keeps running in local-only mode.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrMalformedCandidate indicates a draft statement that could not be
	// parsed into a usable candidate.
	ErrMalformedCandidate = errors.New("malformed candidate statement")
)
