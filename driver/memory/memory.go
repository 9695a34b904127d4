// Package memory is an in-process hubstore.Driver for tests and local development.
// Contents are lost when the process exits.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/driver"
)

func init() {
	driver.MustRegister(driver.Backend{
		Name:        "memory",
		Description: "in-process memory (not persistent)",
		Open: func(_ context.Context, cfg driver.Config) (hubstore.Driver, error) {
			return New(cfg.ReadURLPrefix, cfg.EffectivePageSize()), nil
		},
	})
}

type object struct {
	data        []byte
	contentType string
	etag        string
	modTime     time.Time
}

// Store keeps objects in a map keyed by "<address>/<path>".
type Store struct {
	mu       sync.RWMutex
	objects  map[string]object
	prefix   string
	pageSize int
}

// New returns an empty Store.
func New(readURLPrefix string, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = driver.DefaultPageSize
	}
	return &Store{objects: make(map[string]object), prefix: readURLPrefix, pageSize: pageSize}
}

// ReadURLPrefix implements hubstore.Driver.
func (s *Store) ReadURLPrefix() string { return s.prefix }

// Store implements hubstore.Driver. The body is fully read before the
// object becomes visible.
func (s *Store) Store(ctx context.Context, req hubstore.StoreRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return "", fmt.Errorf("store %s/%s: %w", req.Address, req.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)

	s.mu.Lock()
	s.objects[key(req.Address, req.Path)] = object{
		data:        data,
		contentType: req.ContentType,
		etag:        hex.EncodeToString(sum[:]),
		modTime:     time.Now(),
	}
	s.mu.Unlock()

	return driver.JoinURL(s.prefix, req.Address, req.Path), nil
}

// ListFiles implements hubstore.Driver.
func (s *Store) ListFiles(ctx context.Context, address, page string) (hubstore.ListFilesResult, error) {
	if err := ctx.Err(); err != nil {
		return hubstore.ListFilesResult{}, err
	}

	after, err := hubstore.DecodePageCursor(page)
	if err != nil {
		return hubstore.ListFilesResult{}, err
	}

	prefix := address + "/"

	s.mu.RLock()
	paths := make([]string, 0)
	for k := range s.objects {
		if p, ok := strings.CutPrefix(k, prefix); ok && p > after {
			paths = append(paths, p)
		}
	}
	s.mu.RUnlock()

	sort.Strings(paths)

	result := hubstore.ListFilesResult{Entries: paths}
	if len(paths) > s.pageSize {
		result.Entries = paths[:s.pageSize]
		result.Page = hubstore.NextPage(hubstore.EncodePageCursor(result.Entries[s.pageSize-1]))
	}

	return result, nil
}

// Read implements hubstore.Reader.
func (s *Store) Read(ctx context.Context, address, path string) (hubstore.ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return hubstore.ReadResult{}, err
	}

	s.mu.RLock()
	obj, ok := s.objects[key(address, path)]
	s.mu.RUnlock()
	if !ok {
		return hubstore.ReadResult{}, hubstore.ErrNotFound
	}

	return hubstore.ReadResult{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
		ETag:        obj.etag,
		ModTime:     obj.modTime,
	}, nil
}

func key(address, path string) string {
	return address + "/" + path
}
