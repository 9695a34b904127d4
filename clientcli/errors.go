package clientcli

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors for configuration validation.
var (
	ErrPrivateKeyRequired = errors.New("private key is required")
	ErrConfigRequired     = errors.New("config is required")
)

// Errors for input validation.
var (
	ErrEmptyPath      = errors.New("path is required")
	ErrUnknownKeyType = errors.New("unknown key type")
)
