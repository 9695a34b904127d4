package hubstore

import "errors"

var (
	// ErrValidation is returned for every authentication failure.
	ErrValidation = errors.New("failed to validate authentication token")
	// ErrBadPath is returned when an address or object path is malformed or unsafe.
	ErrBadPath = errors.New("invalid path")
	// ErrNotEnoughProof is returned when an authenticated address lacks verified proofs.
	ErrNotEnoughProof = errors.New("not enough proofs")
	// ErrInvalidInput is returned when request input (such as a page cursor) is malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPayloadTooLarge is returned when an upload exceeds the configured limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotSupported is returned when the configured driver lacks a capability.
	ErrNotSupported = errors.New("not supported")
	// ErrConfig is returned when the deployment is misconfigured.
	ErrConfig = errors.New("misconfigured")
)
