// Package pebble stores objects in an embedded cockroachdb/pebble database.
//
// Each object is one key, "o:<address>/<path>", whose value is a CBOR
// record holding metadata and the zstd-compressed payload. Keys sort
// lexically, so listings are range scans.
package pebble

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/driver"
)

var prefixObject = []byte("o:")

const encodingZstd = "zstd"

func init() {
	driver.MustRegister(driver.Backend{
		Name:        "pebble",
		Description: "embedded pebble key-value store",
		Open: func(_ context.Context, cfg driver.Config) (hubstore.Driver, error) {
			if cfg.Pebble.Path == "" {
				return nil, fmt.Errorf("%w: driver.pebble.path is required", hubstore.ErrConfig)
			}
			return Open(cfg.Pebble.Path, Options{
				ReadURLPrefix:    cfg.ReadURLPrefix,
				PageSize:         cfg.EffectivePageSize(),
				CompressionLevel: cfg.Pebble.CompressionLevel,
			})
		},
	})
}

// Options configures a Store.
type Options struct {
	ReadURLPrefix    string
	PageSize         int
	CompressionLevel int
	// FS overrides the file system, e.g. vfs.NewMem() in tests.
	FS vfs.FS
}

type record struct {
	ContentType string `cbor:"content_type"`
	ETag        string `cbor:"etag"`
	Size        int64  `cbor:"size"`
	ModTime     int64  `cbor:"mod_time"`
	Encoding    string `cbor:"encoding,omitempty"`
	Data        []byte `cbor:"data"`
}

// Store is a pebble-backed hubstore.Driver. It also implements hubstore.Reader.
type Store struct {
	db       *pebble.DB
	prefix   string
	pageSize int
	encMode  cbor.EncMode
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// Open opens or creates a pebble database in dir.
func Open(dir string, opts Options) (*Store, error) {
	pebbleOpts := &pebble.Options{}
	if opts.FS != nil {
		pebbleOpts.FS = opts.FS
	}

	db, err := pebble.Open(dir, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}

	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}

	level := zstd.SpeedDefault
	if opts.CompressionLevel > 0 {
		level = zstd.EncoderLevel(opts.CompressionLevel)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = driver.DefaultPageSize
	}

	return &Store{
		db:       db,
		prefix:   opts.ReadURLPrefix,
		pageSize: pageSize,
		encMode:  encMode,
		encoder:  enc,
		decoder:  dec,
	}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.decoder.Close()
	if err := s.encoder.Close(); err != nil {
		return fmt.Errorf("close zstd encoder: %w", err)
	}
	return s.db.Close()
}

// ReadURLPrefix implements hubstore.Driver.
func (s *Store) ReadURLPrefix() string { return s.prefix }

// Store implements hubstore.Driver. The value is written with a synced
// single-key Set, so readers see either the old or the new object.
func (s *Store) Store(ctx context.Context, req hubstore.StoreRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	plain, err := io.ReadAll(req.Body)
	if err != nil {
		return "", fmt.Errorf("store %s/%s: read body: %w", req.Address, req.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sum := sha256.Sum256(plain)
	rec := record{
		ContentType: req.ContentType,
		ETag:        hex.EncodeToString(sum[:]),
		Size:        int64(len(plain)),
		ModTime:     time.Now().UnixNano(),
		Encoding:    encodingZstd,
		Data:        s.encoder.EncodeAll(plain, nil),
	}

	val, err := s.encMode.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("store %s/%s: encode record: %w", req.Address, req.Path, err)
	}

	if err := s.db.Set(objectKey(req.Address, req.Path), val, pebble.Sync); err != nil {
		return "", fmt.Errorf("store %s/%s: %w", req.Address, req.Path, err)
	}

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

	nsPrefix := namespacePrefix(address)
	lower := nsPrefix
	if after != "" {
		// Smallest key strictly greater than the cursor path.
		lower = append(objectKey(address, after), 0)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: incrementByte(nsPrefix),
	})
	if err != nil {
		return hubstore.ListFilesResult{}, fmt.Errorf("list files %s: %w", address, err)
	}
	defer func() { _ = iter.Close() }()

	entries := make([]string, 0, s.pageSize)
	more := false
	for iter.First(); iter.Valid(); iter.Next() {
		if len(entries) == s.pageSize {
			more = true
			break
		}
		if err := ctx.Err(); err != nil {
			return hubstore.ListFilesResult{}, err
		}
		entries = append(entries, string(iter.Key()[len(nsPrefix):]))
	}
	if err := iter.Error(); err != nil {
		return hubstore.ListFilesResult{}, fmt.Errorf("list files %s: %w", address, err)
	}

	result := hubstore.ListFilesResult{Entries: entries}
	if more {
		result.Page = hubstore.NextPage(hubstore.EncodePageCursor(entries[len(entries)-1]))
	}
	return result, nil
}

// Read implements hubstore.Reader.
func (s *Store) Read(ctx context.Context, address, path string) (hubstore.ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return hubstore.ReadResult{}, err
	}

	val, closer, err := s.db.Get(objectKey(address, path))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return hubstore.ReadResult{}, hubstore.ErrNotFound
		}
		return hubstore.ReadResult{}, fmt.Errorf("read %s/%s: %w", address, path, err)
	}
	defer func() { _ = closer.Close() }()

	var rec record
	if err := cbor.Unmarshal(val, &rec); err != nil {
		return hubstore.ReadResult{}, fmt.Errorf("read %s/%s: decode record: %w", address, path, err)
	}

	data := rec.Data
	if rec.Encoding == encodingZstd {
		data, err = s.decoder.DecodeAll(rec.Data, nil)
		if err != nil {
			return hubstore.ReadResult{}, fmt.Errorf("read %s/%s: decompress: %w", address, path, err)
		}
	} else {
		data = bytes.Clone(data)
	}

	return hubstore.ReadResult{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: rec.ContentType,
		Size:        rec.Size,
		ETag:        rec.ETag,
		ModTime:     time.Unix(0, rec.ModTime),
	}, nil
}

func namespacePrefix(address string) []byte {
	k := make([]byte, 0, len(prefixObject)+len(address)+1)
	k = append(k, prefixObject...)
	k = append(k, address...)
	return append(k, '/')
}

func objectKey(address, path string) []byte {
	return append(namespacePrefix(address), path...)
}

func incrementByte(b []byte) []byte {
	res := make([]byte, len(b))
	copy(res, b)
	for i := len(res) - 1; i >= 0; i-- {
		res[i]++
		if res[i] != 0 {
			return res
		}
	}
	return nil
}
