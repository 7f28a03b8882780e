// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a bad or missing device auth token or a
	// failed second-factor check.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSequenceMismatch indicates an envelope sequence number that does not
	// match the device's expected next sequence number. The whole batch is
	// rejected and the device must resync its offset.
	ErrSequenceMismatch = errors.New("sequence mismatch")

	// ErrIntegrityMismatch indicates a corrupted or tampered envelope.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrMalformedAction indicates an action payload that failed validation at decode time.
	ErrMalformedAction = errors.New("malformed action")

	// ErrUnknownActionType indicates a wire action with an unknown type tag.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrConflict indicates a business-rule conflict (e.g. missing target entity).
	ErrConflict = errors.New("conflict")

	// ErrRateLimited indicates a temporary lock due to repeated failed auth attempts.
	ErrRateLimited = errors.New("rate limited")
)
