package clientcli

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/auth"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultTokenTTL is how long v2 tokens minted by the client stay valid.
	DefaultTokenTTL = 15 * time.Minute

	// maxListPages bounds auto-pagination against a hub that never ends a listing.
	maxListPages = 10000
)

// Client performs operations against a hub.
type Client struct {
	endpoint   string
	httpClient *http.Client
	signer     *auth.Signer
	version    auth.Version
	tokenTTL   time.Duration

	mu   sync.Mutex
	info *hubstore.HubInfo
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTokenVersion selects the token format sent to the hub.
func WithTokenVersion(v auth.Version) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithTokenTTL sets the lifetime of v2 tokens. Zero produces tokens without expiry.
func WithTokenTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.tokenTTL = ttl
	}
}

// New creates a Client. A Config without a private key can still read hub
// info and public objects.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()

	c := &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		version:    auth.LatestVersion,
		tokenTTL:   DefaultTokenTTL,
	}

	if cfg.PrivateKey != "" {
		signer, err := auth.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		c.signer = signer
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Address returns the namespace controlled by the client's key, or "" without one.
func (c *Client) Address() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address()
}

// HubInfo fetches the hub's discovery document. The result is cached for
// the lifetime of the client.
func (c *Client) HubInfo(ctx context.Context) (*hubstore.HubInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.info != nil {
		return c.info, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/hub_info", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var info hubstore.HubInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse hub info: %w", err)
	}

	c.info = &info
	return c.info, nil
}

// Token mints a bearer token for the client's address over the hub's challenge text.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.signer == nil {
		return "", ErrPrivateKeyRequired
	}

	info, err := c.HubInfo(ctx)
	if err != nil {
		return "", err
	}

	var opts auth.TokenOptions
	if c.tokenTTL > 0 {
		opts.ExpiresAt = time.Now().Add(c.tokenTTL)
	}

	token, err := c.signer.Token(c.version, info.ChallengeText, opts)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Upload stores file(s) in the client's namespace.
// For recursive uploads, walks the directory and preserves relative paths.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	if opts.Recursive {
		return c.uploadRecursive(ctx, token, opts)
	}

	remotePath := opts.RemotePath
	if remotePath == "" {
		remotePath = NormalizeLocalToRemotePath(opts.LocalPath)
	}

	result, err := c.uploadSingle(ctx, token, opts.LocalPath, remotePath, opts.ContentType)
	if err != nil {
		return nil, err
	}
	return []UploadResult{result}, nil
}

// uploadRecursive walks a directory and uploads all files.
func (c *Client) uploadRecursive(ctx context.Context, token string, opts UploadOptions) ([]UploadResult, error) {
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !info.IsDir() {
		remotePath := opts.RemotePath
		if remotePath == "" {
			remotePath = NormalizeLocalToRemotePath(opts.LocalPath)
		}
		result, uploadErr := c.uploadSingle(ctx, token, opts.LocalPath, remotePath, opts.ContentType)
		if uploadErr != nil {
			return nil, uploadErr
		}
		return []UploadResult{result}, nil
	}

	var results []UploadResult
	baseDir := opts.LocalPath
	remotePrefix := strings.Trim(opts.RemotePath, "/")

	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			results = append(results, UploadResult{
				LocalPath: path,
				Err:       fmt.Errorf("calculate relative path: %w", relErr),
			})
			return nil
		}

		remotePath := filepath.ToSlash(relPath)
		if remotePrefix != "" {
			remotePath = remotePrefix + "/" + remotePath
		}

		result, uploadErr := c.uploadSingle(ctx, token, path, remotePath, "")
		if uploadErr != nil {
			result = UploadResult{
				LocalPath:  path,
				RemotePath: remotePath,
				Err:        uploadErr,
			}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

func (c *Client) uploadSingle(ctx context.Context, token, localPath, remotePath, contentType string) (UploadResult, error) {
	remotePath = strings.Trim(remotePath, "/")
	if remotePath == "" {
		return UploadResult{}, fmt.Errorf("upload %s: %w", localPath, ErrEmptyPath)
	}

	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}

	if contentType == "" {
		contentType = detectContentType(localPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL("store", c.Address(), remotePath), file)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = info.Size()

	body, err := c.do(req, http.StatusAccepted)
	if err != nil {
		return UploadResult{}, err
	}

	var resp storeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return UploadResult{}, fmt.Errorf("parse response: %w", err)
	}

	return UploadResult{
		LocalPath:   localPath,
		RemotePath:  remotePath,
		PublicURL:   resp.PublicURL,
		ContentType: contentType,
		Size:        info.Size(),
	}, nil
}

// HasUploadErrors reports whether any upload failed.
func HasUploadErrors(results []UploadResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// List lists the client's namespace. With opts.All it follows pages to the end.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	if !opts.All {
		return c.listPage(ctx, token, opts.Page)
	}

	all := &ListResult{Address: c.Address(), Entries: []string{}}
	page := opts.Page
	for range maxListPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := c.listPage(ctx, token, page)
		if err != nil {
			return nil, err
		}
		all.Entries = append(all.Entries, res.Entries...)

		if res.NextPage == "" {
			return all, nil
		}
		page = res.NextPage
	}

	return nil, fmt.Errorf("list %s: more than %d pages", c.Address(), maxListPages)
}

func (c *Client) listPage(ctx context.Context, token, page string) (*ListResult, error) {
	reqBody := listRequest{}
	if page != "" {
		reqBody.Page = &page
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	address := c.Address()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/list-files/"+url.PathEscape(address), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, http.StatusAccepted)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := &ListResult{Address: address, Entries: resp.Entries}
	if result.Entries == nil {
		result.Entries = []string{}
	}
	if resp.Page != nil {
		result.NextPage = *resp.Page
	}
	return result, nil
}

// Read downloads a stored object through the hub's read endpoint.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Read(ctx context.Context, opts ReadOptions) (*ReadResult, io.ReadCloser, error) {
	remotePath := strings.Trim(opts.RemotePath, "/")
	if remotePath == "" {
		return nil, nil, fmt.Errorf("read: %w", ErrEmptyPath)
	}

	address := opts.Address
	if address == "" {
		address = c.Address()
	}
	if address == "" {
		return nil, nil, fmt.Errorf("read: %w", ErrPrivateKeyRequired)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL("read", address, remotePath), http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &ReadResult{
		Address:     address,
		RemotePath:  remotePath,
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, parseErr := http.ParseTime(lm); parseErr == nil {
			result.ModTime = t
		}
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = filepath.Base(filepath.FromSlash(remotePath))
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// do executes req and returns the body when the status matches want.
func (c *Client) do(req *http.Request, want int) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		return nil, parseServerError(resp.StatusCode, body)
	}
	return body, nil
}

// objectURL builds <endpoint>/<route>/<address>/<path> with each path segment escaped.
func (c *Client) objectURL(route, address, remotePath string) string {
	segments := strings.Split(remotePath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.endpoint + "/" + route + "/" + url.PathEscape(address) + "/" + strings.Join(segments, "/")
}

// GenerateKey creates a new signing key. keyType is "ed25519" or "dilithium3".
func GenerateKey(keyType string) (*KeyInfo, error) {
	var (
		signer *auth.Signer
		err    error
	)

	switch strings.ToLower(keyType) {
	case "", "ed25519":
		signer, err = auth.NewEd25519Signer(rand.Reader)
	case "dilithium3":
		signer, err = auth.NewDilithium3Signer(rand.Reader)
	default:
		return nil, fmt.Errorf("%w: %s (want ed25519 or dilithium3)", ErrUnknownKeyType, keyType)
	}
	if err != nil {
		return nil, err
	}

	return describeKey(signer, true)
}

// DescribeKey parses an encoded private key and reports its public half.
func DescribeKey(privateKey string) (*KeyInfo, error) {
	signer, err := auth.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return describeKey(signer, false)
}

func describeKey(signer *auth.Signer, withPrivate bool) (*KeyInfo, error) {
	info := &KeyInfo{
		Algorithm: string(signer.Algorithm()),
		Address:   signer.Address(),
		PublicKey: signer.PublicKey().String(),
	}
	if withPrivate {
		priv, err := signer.PrivateKey()
		if err != nil {
			return nil, err
		}
		info.PrivateKey = priv
	}
	return info, nil
}

// NormalizeLocalToRemotePath converts a local path to a clean remote path.
// It handles:
//   - Leading "./" is stripped (./foo/bar.txt -> foo/bar.txt)
//   - Leading "/" is stripped (/abs/path/file.txt -> abs/path/file.txt)
//   - Parent traversal is dropped (../sibling/file.txt -> sibling/file.txt)
//   - Backslashes are converted to forward slashes (Windows)
func NormalizeLocalToRemotePath(localPath string) string {
	path := filepath.ToSlash(filepath.Clean(filepath.ToSlash(localPath)))

	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")

	for strings.HasPrefix(path, "../") {
		path = strings.TrimPrefix(path, "../")
	}

	if path == ".." || path == "." {
		return ""
	}

	return path
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		return hubstore.DefaultContentType
	}
	return mimeType
}

// parseServerError builds an APIError, taking the message from the hub's JSON body when present.
func parseServerError(statusCode int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		msg = er.Message
	}
	return &APIError{StatusCode: statusCode, Message: msg}
}

// APIError is an error response from the hub.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return "hub error: " + strconv.Itoa(e.StatusCode) + " - " + e.Message
}

// Is matches another *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// Sentinel errors for hub responses. Use errors.Is to check for them.
var (
	// ErrUnauthorized means the token was rejected or the address is not whitelisted (401).
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized}

	// ErrNotEnoughProof means the address lacks the social proofs the hub requires (402).
	ErrNotEnoughProof = &APIError{StatusCode: http.StatusPaymentRequired}

	// ErrForbidden means the path or address was rejected (403).
	ErrForbidden = &APIError{StatusCode: http.StatusForbidden}

	// ErrNotFound is returned when the object or route does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrTooLarge means the upload exceeded the hub's size limit (413).
	ErrTooLarge = &APIError{StatusCode: http.StatusRequestEntityTooLarge}
)
