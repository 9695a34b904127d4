package clientcli

import "time"

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string
	RemotePath  string
	ContentType string // optional, auto-detect if empty
	Recursive   bool
}

// UploadResult is the outcome of uploading a single file.
type UploadResult struct {
	LocalPath   string `json:"local_path"`
	RemotePath  string `json:"remote_path"`
	PublicURL   string `json:"public_url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
	Err         error  `json:"-"` // nil on success
}

// ReadOptions configures a read of a stored object.
type ReadOptions struct {
	// Address is the namespace to read from. Empty reads from the client's own address.
	Address    string
	RemotePath string
	LocalPath  string // empty = derive from remote, "-" = stdout
}

// ReadResult describes a downloaded object.
type ReadResult struct {
	Address     string    `json:"address"`
	RemotePath  string    `json:"remote_path"`
	LocalPath   string    `json:"local_path"`
	ETag        string    `json:"etag"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size_bytes"`
	ModTime     time.Time `json:"modified_at,omitzero"`
}

// ListOptions configures a list operation.
type ListOptions struct {
	// Page resumes a listing from a previous NextPage.
	Page string
	All  bool // follow pages until the end of the listing
}

// ListResult holds the listed paths of a namespace.
type ListResult struct {
	Address  string   `json:"address"`
	Entries  []string `json:"entries"`
	NextPage string   `json:"next_page,omitempty"`
}

// KeyInfo describes a signing key and the namespace it controls.
type KeyInfo struct {
	Algorithm  string `json:"algorithm"`
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key,omitempty"`
}

// storeResponse mirrors the hub's store response body.
type storeResponse struct {
	PublicURL string `json:"publicURL"`
}

// listRequest mirrors the hub's list-files request body.
type listRequest struct {
	Page *string `json:"page"`
}

// listResponse mirrors the hub's list-files response body.
type listResponse struct {
	Entries []string `json:"entries"`
	Page    *string  `json:"page"`
}

// errorResponse mirrors the hub's error body.
type errorResponse struct {
	Message string `json:"message"`
}
