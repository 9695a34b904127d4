package hubstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// DefaultContentType is used when a write does not declare a Content-Type.
const DefaultContentType = "application/octet-stream"

// Driver persists objects for a namespace.
//
// Implementations must be safe for concurrent use. Writes to distinct
// (address, path) pairs must not interfere; concurrent writes to the same
// pair resolve as last-write-wins. A path may name an object and also be a
// prefix of other objects ("doc" and "doc/readme").
type Driver interface {
	// Store writes the object described by req and returns its public URL.
	// Implementations should honour ctx cancellation and clean up partial writes.
	Store(ctx context.Context, req StoreRequest) (string, error)

	// ListFiles returns one page of the paths stored under address, in lexical order.
	// An empty page requests the first page. A malformed page returns ErrInvalidInput.
	ListFiles(ctx context.Context, address, page string) (ListFilesResult, error)

	// ReadURLPrefix returns the URL prefix under which stored objects are publicly readable.
	ReadURLPrefix() string
}

// Reader is implemented by drivers that can serve stored objects back.
type Reader interface {
	// Read opens the object at (address, path). Returns ErrNotFound if it does not exist.
	Read(ctx context.Context, address, path string) (ReadResult, error)
}

// Authenticator verifies write tokens for a namespace.
type Authenticator interface {
	// Verify returns nil when token proves control of address, ErrValidation otherwise.
	Verify(token, address string) error
	ChallengeText() string
	LatestVersion() string
}

// ProofChecker decides whether an address carries enough social proofs to write.
type ProofChecker interface {
	// CheckProofs returns ErrNotEnoughProof when the address falls short of policy.
	CheckProofs(ctx context.Context, address string) error
}

// HubConfig holds optional behaviour for HubServer.
type HubConfig struct {
	// Whitelist restricts writes to the listed addresses. Empty allows any address.
	Whitelist []string
}

// HubServer authorizes requests against a namespace and dispatches them to a Driver.
// It holds no mutable state and is safe for concurrent use.
type HubServer struct {
	driver    Driver
	auth      Authenticator
	proofs    ProofChecker
	whitelist map[string]struct{}
}

// NewHubServer creates a HubServer. proofs may be nil, in which case no
// proof check is performed.
func NewHubServer(driver Driver, auth Authenticator, proofs ProofChecker, cfg HubConfig) (*HubServer, error) {
	if driver == nil {
		return nil, fmt.Errorf("new hub server: %w: driver is required", ErrInvalidInput)
	}
	if auth == nil {
		return nil, fmt.Errorf("new hub server: %w: authenticator is required", ErrInvalidInput)
	}

	var whitelist map[string]struct{}
	if len(cfg.Whitelist) > 0 {
		whitelist = make(map[string]struct{}, len(cfg.Whitelist))
		for _, addr := range cfg.Whitelist {
			if !IsValidAddress(addr) {
				return nil, fmt.Errorf("new hub server: %w: invalid whitelist address %q", ErrInvalidInput, addr)
			}
			whitelist[addr] = struct{}{}
		}
	}

	return &HubServer{
		driver:    driver,
		auth:      auth,
		proofs:    proofs,
		whitelist: whitelist,
	}, nil
}

// HandleRequest authorizes a write of body to (address, path) and stores it.
//
// Checks run in order: address and path validity (ErrBadPath), token
// verification and whitelist (ErrValidation), proof sufficiency
// (ErrNotEnoughProof). The driver is only called once every check passes.
// Returns the public URL reported by the driver.
func (h *HubServer) HandleRequest(ctx context.Context, address, path string, headers http.Header, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("handle request: %w", err)
	}

	if !IsValidAddress(address) {
		return "", fmt.Errorf("handle request: %w: invalid address", ErrBadPath)
	}

	path = NormalizePath(path)
	if !IsValidPath(path) {
		return "", fmt.Errorf("handle request %s: %w", path, ErrBadPath)
	}

	if err := h.authenticate(address, headers); err != nil {
		return "", fmt.Errorf("handle request: %w", err)
	}

	if !h.isWhitelisted(address) {
		return "", fmt.Errorf("handle request: %w: address not whitelisted", ErrValidation)
	}

	if h.proofs != nil {
		if err := h.proofs.CheckProofs(ctx, address); err != nil {
			return "", fmt.Errorf("handle request: check proofs: %w", err)
		}
	}

	req := StoreRequest{
		Address:       address,
		Path:          path,
		ContentType:   contentType(headers),
		ContentLength: contentLength(headers),
		Body:          body,
	}

	publicURL, err := h.driver.Store(ctx, req)
	if err != nil {
		return "", fmt.Errorf("handle request %s/%s: store: %w", address, path, err)
	}

	return publicURL, nil
}

// HandleListFiles authorizes and returns one page of the paths stored under address.
// A nil page requests the first page. Proofs are not checked for listing.
func (h *HubServer) HandleListFiles(ctx context.Context, address string, page *string, headers http.Header) (ListFilesResult, error) {
	if err := ctx.Err(); err != nil {
		return ListFilesResult{}, fmt.Errorf("handle list files: %w", err)
	}

	if !IsValidAddress(address) {
		return ListFilesResult{}, fmt.Errorf("handle list files: %w: invalid address", ErrBadPath)
	}

	if err := h.authenticate(address, headers); err != nil {
		return ListFilesResult{}, fmt.Errorf("handle list files: %w", err)
	}

	var cursor string
	if page != nil {
		cursor = *page
	}

	result, err := h.driver.ListFiles(ctx, address, cursor)
	if err != nil {
		return ListFilesResult{}, fmt.Errorf("handle list files %s: %w", address, err)
	}

	if result.Entries == nil {
		result.Entries = []string{}
	}
	if result.Page != nil && *result.Page == "" {
		result.Page = nil
	}

	return result, nil
}

// GetReadURLPrefix returns the driver's public read prefix.
func (h *HubServer) GetReadURLPrefix() string {
	return h.driver.ReadURLPrefix()
}

// HubInfo returns the discovery document for clients.
// Returns ErrConfig when the challenge text is too short to be meaningful.
func (h *HubServer) HubInfo() (HubInfo, error) {
	challenge := h.auth.ChallengeText()
	if len(challenge) < MinChallengeTextLength {
		return HubInfo{}, fmt.Errorf("hub info: %w: challenge text too short", ErrConfig)
	}

	return HubInfo{
		ChallengeText:     challenge,
		LatestAuthVersion: h.auth.LatestVersion(),
		ReadURLPrefix:     h.driver.ReadURLPrefix(),
	}, nil
}

// Read opens a stored object. Reads are public and unauthenticated.
// Returns ErrNotSupported when the driver cannot serve objects back.
func (h *HubServer) Read(ctx context.Context, address, path string) (ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return ReadResult{}, fmt.Errorf("read: %w", err)
	}

	if !IsValidAddress(address) {
		return ReadResult{}, fmt.Errorf("read: %w: invalid address", ErrBadPath)
	}

	path = NormalizePath(path)
	if !IsValidPath(path) {
		return ReadResult{}, fmt.Errorf("read %s: %w", path, ErrBadPath)
	}

	reader, ok := h.driver.(Reader)
	if !ok {
		return ReadResult{}, fmt.Errorf("read: %w", ErrNotSupported)
	}

	res, err := reader.Read(ctx, address, path)
	if err != nil {
		return ReadResult{}, fmt.Errorf("read %s/%s: %w", address, path, err)
	}

	return res, nil
}

func (h *HubServer) authenticate(address string, headers http.Header) error {
	token, err := TokenFromHeaders(headers)
	if err != nil {
		return err
	}

	if err := h.auth.Verify(token, address); err != nil {
		if errors.Is(err, ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

func (h *HubServer) isWhitelisted(address string) bool {
	if h.whitelist == nil {
		return true
	}
	_, ok := h.whitelist[address]
	return ok
}

// MinChallengeTextLength is the shortest challenge text a hub will advertise.
const MinChallengeTextLength = 10

// TokenFromHeaders extracts the token from an "Authorization: bearer <token>" header.
// The scheme is matched case-insensitively.
func TokenFromHeaders(headers http.Header) (string, error) {
	value := strings.TrimSpace(headers.Get("Authorization"))
	if value == "" {
		return "", fmt.Errorf("%w: missing authorization header", ErrValidation)
	}

	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", fmt.Errorf("%w: unsupported authorization scheme", ErrValidation)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrValidation)
	}

	return token, nil
}

func contentType(headers http.Header) string {
	if ct := headers.Get("Content-Type"); ct != "" {
		return ct
	}
	return DefaultContentType
}

func contentLength(headers http.Header) int64 {
	raw := headers.Get("Content-Length")
	if raw == "" {
		return -1
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
