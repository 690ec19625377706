package state

import "errors"

var (
	// ErrInvalidFormat is returned when the state is not "<payload>.<signature>"
	// or the payload does not decode to the expected JSON document.
	ErrInvalidFormat = errors.New("invalid state format")
	// ErrInvalidSignature is returned when the signature does not match the payload.
	ErrInvalidSignature = errors.New("invalid state signature")
	// ErrExpired is returned when the state is older than the validity window.
	ErrExpired = errors.New("state expired")
	// ErrMissingFields is returned when workspaceId or userId is empty.
	ErrMissingFields = errors.New("state is missing workspace or user")
	// ErrReplayed is returned by a NonceLedger for a nonce that was already consumed.
	ErrReplayed = errors.New("state already used")
)

// IsStateError reports whether err is one of the user-correctable state
// failures. Callers answer these with a "link expired, try again" response.
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrReplayed)
}
