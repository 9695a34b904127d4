// Package driver selects storage backends by name.
//
// Each backend package registers itself from init, so a binary only has to
// import the backends it wants:
//
//	import (
//	    "github.com/sagarc03/hubstore/driver"
//	    _ "github.com/sagarc03/hubstore/driver/disk"
//	)
//
//	drv, err := driver.Open(ctx, driver.Config{Type: "disk", ...})
package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sagarc03/hubstore"
)

// DefaultPageSize is the number of entries returned per listing page when
// a backend is not configured otherwise.
const DefaultPageSize = 100

// ErrUnknownDriver is returned by Open for an unregistered type.
var ErrUnknownDriver = errors.New("unknown driver")

// Config selects and configures a backend.
type Config struct {
	Type          string       `mapstructure:"type" validate:"required"`
	ReadURLPrefix string       `mapstructure:"read_url_prefix"`
	PageSize      int          `mapstructure:"page_size" validate:"gte=0,lte=10000"`
	Disk          DiskConfig   `mapstructure:"disk"`
	S3            S3Config     `mapstructure:"s3"`
	Pebble        PebbleConfig `mapstructure:"pebble"`
}

// DiskConfig configures the disk backend.
type DiskConfig struct {
	Path string `mapstructure:"path"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Prefix         string `mapstructure:"prefix"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
}

// PebbleConfig configures the pebble backend.
type PebbleConfig struct {
	Path string `mapstructure:"path"`
	// CompressionLevel is the zstd level for stored payloads (1 fastest, 4 best).
	CompressionLevel int `mapstructure:"compression_level" validate:"gte=0,lte=4"`
}

// EffectivePageSize returns PageSize or DefaultPageSize when unset.
func (c Config) EffectivePageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}

// OpenFunc constructs a backend from its configuration.
type OpenFunc func(ctx context.Context, cfg Config) (hubstore.Driver, error)

// Backend describes a registered storage backend.
type Backend struct {
	Name        string
	Description string
	Open        OpenFunc
}

var (
	mu       sync.RWMutex
	backends = make(map[string]Backend)
)

// Register adds a backend. It fails if the name is empty or already taken.
func Register(b Backend) error {
	name := strings.ToLower(strings.TrimSpace(b.Name))
	if name == "" {
		return errors.New("register driver: name cannot be empty")
	}
	if b.Open == nil {
		return fmt.Errorf("register driver %s: open func cannot be nil", name)
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := backends[name]; exists {
		return fmt.Errorf("register driver %s: already registered", name)
	}
	b.Name = name
	backends[name] = b
	return nil
}

// MustRegister is like Register but panics on error. Intended for init functions.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := backends[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

// Names returns the registered backend names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Backends returns all registered backends sorted by name.
func Backends() []Backend {
	names := Names()
	out := make([]Backend, 0, len(names))
	for _, n := range names {
		b, _ := Lookup(n)
		out = append(out, b)
	}
	return out
}

// Open constructs the backend named by cfg.Type.
func Open(ctx context.Context, cfg Config) (hubstore.Driver, error) {
	b, ok := Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("open driver %q: %w (registered: %s)", cfg.Type, ErrUnknownDriver, strings.Join(Names(), ", "))
	}

	drv, err := b.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open driver %s: %w", b.Name, err)
	}
	return drv, nil
}

// JoinURL joins a read prefix with an address and path, inserting a single slash between parts.
func JoinURL(prefix, address, path string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + address + "/" + path
}
