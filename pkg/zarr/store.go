// Package zarr reads zarr v2 hierarchies written by xarray into lazily
// loaded grid variables. Stores are key/value: a local directory or a
// Google Cloud Storage prefix.
package zarr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrNotFound         = errors.New("key not found in store")
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrUnsupportedDtype = errors.New("unsupported dtype")
)

// Store is a read-only zarr key/value store. Keys use "/" separators
// relative to the hierarchy root.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the names of the root's immediate children
	List(ctx context.Context) ([]string, error)
	String() string
}

// DirStore is a zarr hierarchy on the local filesystem
type DirStore struct {
	root string
}

// OpenDir returns a store rooted at path, which must be a directory
func OpenDir(path string) (*DirStore, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening zarr store: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("opening zarr store: %s is not a directory", path)
	}
	return &DirStore{root: path}, nil
}

func (s *DirStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %s: %w", s.root, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

func (s *DirStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *DirStore) String() string { return s.root }
