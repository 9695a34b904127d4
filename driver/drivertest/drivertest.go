// Package drivertest provides a conformance suite for hubstore.Driver implementations.
package drivertest

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/sagarc03/hubstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty driver that lists pageSize entries per page.
type Factory func(t *testing.T, pageSize int) hubstore.Driver

// Options adjusts the suite for backend limitations.
type Options struct {
	// OpaqueCursors skips the malformed-cursor check for backends whose
	// cursors are validated remotely.
	OpaqueCursors bool
}

// Run executes the conformance suite against drivers produced by newDriver.
func Run(t *testing.T, newDriver Factory, opts Options) {
	t.Run("store returns public url", func(t *testing.T) {
		d := newDriver(t, 10)
		url, err := d.Store(context.Background(), request("abc123", "photos/avatar.png", "image/png", "png"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, strings.TrimSuffix(d.ReadURLPrefix(), "/")), "url %q", url)
		assert.True(t, strings.HasSuffix(url, "abc123/photos/avatar.png"), "url %q", url)
	})

	t.Run("empty namespace", func(t *testing.T) {
		d := newDriver(t, 10)
		res, err := d.ListFiles(context.Background(), "empty1", "")
		require.NoError(t, err)
		assert.Empty(t, res.Entries)
		assert.Nil(t, res.Page)
	})

	t.Run("pagination covers every path once in lexical order", func(t *testing.T) {
		d := newDriver(t, 2)
		ctx := context.Background()
		want := []string{"a.txt", "b/c.txt", "b/d.txt", "b-e.txt", "z.txt"}
		for _, p := range want {
			_, err := d.Store(ctx, request("pager1", p, "text/plain", p))
			require.NoError(t, err)
		}

		got := collect(t, d, "pager1")
		assert.Equal(t, sorted(want), got)
	})

	t.Run("cursor is repeatable", func(t *testing.T) {
		d := newDriver(t, 2)
		ctx := context.Background()
		for _, p := range []string{"1", "2", "3", "4", "5"} {
			_, err := d.Store(ctx, request("repeat1", p, "text/plain", p))
			require.NoError(t, err)
		}

		first, err := d.ListFiles(ctx, "repeat1", "")
		require.NoError(t, err)
		require.NotNil(t, first.Page)

		a, err := d.ListFiles(ctx, "repeat1", *first.Page)
		require.NoError(t, err)
		b, err := d.ListFiles(ctx, "repeat1", *first.Page)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		d := newDriver(t, 10)
		ctx := context.Background()
		_, err := d.Store(ctx, request("alice1", "secret.txt", "text/plain", "a"))
		require.NoError(t, err)
		_, err = d.Store(ctx, request("bob1", "public.txt", "text/plain", "b"))
		require.NoError(t, err)

		assert.Equal(t, []string{"secret.txt"}, collect(t, d, "alice1"))
		assert.Equal(t, []string{"public.txt"}, collect(t, d, "bob1"))
	})

	t.Run("overwrite keeps a single entry", func(t *testing.T) {
		d := newDriver(t, 10)
		ctx := context.Background()
		_, err := d.Store(ctx, request("over1", "file.txt", "text/plain", "first"))
		require.NoError(t, err)
		_, err = d.Store(ctx, request("over1", "file.txt", "text/markdown", "second"))
		require.NoError(t, err)

		assert.Equal(t, []string{"file.txt"}, collect(t, d, "over1"))

		if r, ok := d.(hubstore.Reader); ok {
			body, ct := read(t, r, "over1", "file.txt")
			assert.Equal(t, "second", body)
			assert.Equal(t, "text/markdown", ct)
		}
	})

	t.Run("object and prefix coexist", func(t *testing.T) {
		d := newDriver(t, 10)
		ctx := context.Background()
		for _, p := range []string{"photos/avatar.png", "photos", "doc", "doc/readme"} {
			_, err := d.Store(ctx, request("nest1", p, "text/plain", "body of "+p))
			require.NoError(t, err, "store %s", p)
		}

		assert.Equal(t, []string{"doc", "doc/readme", "photos", "photos/avatar.png"}, collect(t, d, "nest1"))

		if r, ok := d.(hubstore.Reader); ok {
			for _, p := range []string{"photos", "photos/avatar.png", "doc", "doc/readme"} {
				body, _ := read(t, r, "nest1", p)
				assert.Equal(t, "body of "+p, body)
			}
		}
	})

	t.Run("concurrent writes to distinct keys", func(t *testing.T) {
		d := newDriver(t, 100)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := range 20 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p := fmt.Sprintf("f%02d.txt", i)
				if _, err := d.Store(ctx, request("conc1", p, "text/plain", p)); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("store: %v", err)
		}

		got := collect(t, d, "conc1")
		assert.Len(t, got, 20)

		if r, ok := d.(hubstore.Reader); ok {
			for i := range 20 {
				p := fmt.Sprintf("f%02d.txt", i)
				body, _ := read(t, r, "conc1", p)
				assert.Equal(t, p, body)
			}
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		d := newDriver(t, 10)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := d.Store(ctx, request("cancel1", "file.txt", "text/plain", "x"))
		assert.Error(t, err)

		res, err := d.ListFiles(context.Background(), "cancel1", "")
		require.NoError(t, err)
		assert.Empty(t, res.Entries, "cancelled write must not be visible")
	})

	if !opts.OpaqueCursors {
		t.Run("malformed cursor", func(t *testing.T) {
			d := newDriver(t, 10)
			_, err := d.ListFiles(context.Background(), "abc123", "%%%not-a-cursor%%%")
			assert.ErrorIs(t, err, hubstore.ErrInvalidInput)
		})
	}

	t.Run("reader", func(t *testing.T) {
		d := newDriver(t, 10)
		r, ok := d.(hubstore.Reader)
		if !ok {
			t.Skip("driver does not implement hubstore.Reader")
		}
		ctx := context.Background()

		_, err := d.Store(ctx, request("reader1", "docs/readme.md", "text/markdown", "# hello"))
		require.NoError(t, err)

		body, ct := read(t, r, "reader1", "docs/readme.md")
		assert.Equal(t, "# hello", body)
		assert.Equal(t, "text/markdown", ct)

		_, err = r.Read(ctx, "reader1", "missing.md")
		assert.ErrorIs(t, err, hubstore.ErrNotFound)
	})
}

func request(address, path, contentType, body string) hubstore.StoreRequest {
	return hubstore.StoreRequest{
		Address:       address,
		Path:          path,
		ContentType:   contentType,
		ContentLength: int64(len(body)),
		Body:          strings.NewReader(body),
	}
}

func collect(t *testing.T, d hubstore.Driver, address string) []string {
	t.Helper()
	var all []string
	page := ""
	for range 1000 {
		res, err := d.ListFiles(context.Background(), address, page)
		require.NoError(t, err)
		all = append(all, res.Entries...)
		if res.Page == nil {
			return all
		}
		page = *res.Page
	}
	t.Fatalf("listing %s did not terminate", address)
	return nil
}

func read(t *testing.T, r hubstore.Reader, address, path string) (string, string) {
	t.Helper()
	res, err := r.Read(context.Background(), address, path)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b), res.ContentType
}

func sorted(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
