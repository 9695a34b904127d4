// Package hubstore is a storage gateway that accepts authenticated writes and
// listings against namespaces identified by public-key-derived addresses.
//
// A request passes through a fixed pipeline before any storage is touched:
// address and path validation, challenge-token verification, an optional
// write whitelist, and an optional social-proof check. Only then is the
// request handed to a pluggable Driver.
//
// # Key Components
//
//   - HubServer: validates, authorizes and dispatches requests
//   - Driver: object persistence (disk, S3, pebble, memory; see the driver package)
//   - Authenticator: versioned token verification (see the auth package)
//   - ProofChecker: social-proof policy (see the proofs package)
//
// # Example Usage
//
//	hub, err := hubstore.NewHubServer(drv, verifier, checker, hubstore.HubConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	url, err := hub.HandleRequest(ctx, address, "photos/avatar.png", r.Header, r.Body)
//
// Errors are reported as wrapped sentinels (ErrValidation, ErrBadPath,
// ErrNotEnoughProof, ...) that the http package maps to status codes.
package hubstore
