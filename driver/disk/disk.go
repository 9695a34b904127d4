// Package disk stores objects on the local file system. Every object owns a
// directory <root>/<address>/<path>/ holding its bytes and metadata under
// reserved leaf names, so "doc" and "doc/readme" can coexist. Writes are
// atomic (temp file + rename) and confined to the root with os.Root.
package disk

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/driver"
)

// Leaf names inside an object directory. Valid object paths never contain
// '~', so they cannot name a user object.
const (
	dataName = "~data"
	metaName = "~meta.json"
)

func init() {
	driver.MustRegister(driver.Backend{
		Name:        "disk",
		Description: "local file system",
		Open: func(_ context.Context, cfg driver.Config) (hubstore.Driver, error) {
			if cfg.Disk.Path == "" {
				return nil, fmt.Errorf("%w: driver.disk.path is required", hubstore.ErrConfig)
			}
			return Open(cfg.Disk.Path, Options{ReadURLPrefix: cfg.ReadURLPrefix, PageSize: cfg.EffectivePageSize()})
		},
	})
}

// Options configures a Store.
type Options struct {
	ReadURLPrefix string
	PageSize      int
}

// Store is a disk-backed hubstore.Driver. It also implements hubstore.Reader.
type Store struct {
	root     *os.Root
	prefix   string
	pageSize int
}

type metadata struct {
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`
}

// Open creates dir if needed and returns a Store rooted there.
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open disk store: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open disk store: %w", err)
	}
	return New(root, opts), nil
}

// New returns a Store over an already opened root.
func New(root *os.Root, opts Options) *Store {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = driver.DefaultPageSize
	}
	return &Store{root: root, prefix: opts.ReadURLPrefix, pageSize: pageSize}
}

// Close releases the root directory handle.
func (s *Store) Close() error {
	return s.root.Close()
}

// ReadURLPrefix implements hubstore.Driver.
func (s *Store) ReadURLPrefix() string {
	return s.prefix
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Store atomically writes the object and its metadata, creating
// intermediate directories as needed.
func (s *Store) Store(ctx context.Context, req hubstore.StoreRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	objPath := objectDir(req.Address, req.Path)

	etag, err := s.writeAtomic(ctx, filepath.Join(objPath, dataName), req.Body)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", objPath, err)
	}

	meta, err := json.Marshal(metadata{ContentType: req.ContentType, ETag: etag})
	if err != nil {
		return "", fmt.Errorf("store %s: encode metadata: %w", objPath, err)
	}
	if _, err := s.writeAtomic(context.WithoutCancel(ctx), filepath.Join(objPath, metaName), bytes.NewReader(meta)); err != nil {
		return "", fmt.Errorf("store %s: write metadata: %w", objPath, err)
	}

	return driver.JoinURL(s.prefix, req.Address, req.Path), nil
}

func (s *Store) writeAtomic(ctx context.Context, dest string, content io.Reader) (string, error) {
	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return "", fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	if _, err := io.Copy(w, &ctxReader{ctx: ctx, r: content}); err != nil {
		return "", fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return "", fmt.Errorf("could not sync written file: %w", err)
	}

	if destDir := filepath.Dir(dest); destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return "", fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if err := s.root.Rename(tmpFile, dest); err != nil {
		return "", fmt.Errorf("failed to rename file: %w", err)
	}

	success = true
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ListFiles returns the namespace's paths in lexical order, one page at a time.
func (s *Store) ListFiles(ctx context.Context, address, page string) (hubstore.ListFilesResult, error) {
	if err := ctx.Err(); err != nil {
		return hubstore.ListFilesResult{}, err
	}

	after, err := hubstore.DecodePageCursor(page)
	if err != nil {
		return hubstore.ListFilesResult{}, err
	}

	paths, err := s.walk(ctx, address)
	if err != nil {
		return hubstore.ListFilesResult{}, fmt.Errorf("list files %s: %w", address, err)
	}

	start := 0
	if after != "" {
		start = sort.SearchStrings(paths, after)
		if start < len(paths) && paths[start] == after {
			start++
		}
	}

	end := min(start+s.pageSize, len(paths))
	entries := make([]string, 0, end-start)
	entries = append(entries, paths[start:end]...)

	result := hubstore.ListFilesResult{Entries: entries}
	if end < len(paths) && len(entries) > 0 {
		result.Page = hubstore.NextPage(hubstore.EncodePageCursor(entries[len(entries)-1]))
	}

	return result, nil
}

func (s *Store) walk(ctx context.Context, address string) ([]string, error) {
	paths := []string{}

	err := fs.WalkDir(s.root.FS(), address, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == address && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || d.Name() != dataName {
			return nil
		}
		if dir := path.Dir(p); dir != address {
			paths = append(paths, dir[len(address)+1:])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// Read implements hubstore.Reader.
func (s *Store) Read(ctx context.Context, address, objPath string) (hubstore.ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return hubstore.ReadResult{}, err
	}

	f, err := s.root.Open(filepath.Join(objectDir(address, objPath), dataName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return hubstore.ReadResult{}, hubstore.ErrNotFound
		}
		return hubstore.ReadResult{}, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return hubstore.ReadResult{}, fmt.Errorf("failed to stat file: %w", err)
	}
	meta := s.readMetadata(address, objPath)

	return hubstore.ReadResult{
		Body:        f,
		ContentType: meta.ContentType,
		Size:        info.Size(),
		ETag:        meta.ETag,
		ModTime:     info.ModTime(),
	}, nil
}

func (s *Store) readMetadata(address, objPath string) metadata {
	var meta metadata

	b, err := fs.ReadFile(s.root.FS(), path.Join(address, objPath, metaName))
	if err == nil {
		if jsonErr := json.Unmarshal(b, &meta); jsonErr != nil {
			slog.Warn("corrupt object metadata", "address", address, "path", objPath, "err", jsonErr)
		}
	}

	if meta.ContentType == "" {
		meta.ContentType = detectContentType(objPath)
	}
	return meta
}

func objectDir(address, objPath string) string {
	return filepath.Join(address, filepath.FromSlash(objPath))
}

func detectContentType(p string) string {
	if contentType := mime.TypeByExtension(path.Ext(p)); contentType != "" {
		return contentType
	}
	return hubstore.DefaultContentType
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
