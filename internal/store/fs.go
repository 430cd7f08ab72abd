package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gocid "github.com/ipfs/go-cid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/systemshift/memex-vcs/internal/dag"
)

// FS keeps one file per element in a directory, named by the base32 form of
// the element key.
type FS struct {
	fs          afero.Fs
	dir         string
	concurrency int
}

var _ Store = (*FS)(nil)

// NewFS creates an element directory at dir on fsys. Batches are written by
// at most concurrency goroutines.
func NewFS(fsys afero.Fs, dir string, concurrency int) (*FS, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create objects dir: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &FS{fs: fsys, dir: dir, concurrency: concurrency}, nil
}

func (s *FS) path(key gocid.Cid) string {
	return filepath.Join(s.dir, dag.KeyToFilename(key))
}

// Load implements Store.
func (s *FS) Load(ctx context.Context, key gocid.Cid) (*dag.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf("read element %s: %w", key, err)
	}
	return dag.UnmarshalElement(key, data)
}

// Store implements Store.
func (s *FS) Store(ctx context.Context, elements []*dag.Element) error {
	if err := verifyAll(elements); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, e := range elements {
		e := e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := s.path(e.Key)
			if _, err := s.fs.Stat(path); err == nil {
				return nil // already exists
			}
			data, err := dag.MarshalElement(e)
			if err != nil {
				return fmt.Errorf("encode element %s: %w", e.Key, err)
			}
			if err := SafeWrite(s.fs, path, data, 0644); err != nil {
				return fmt.Errorf("write element %s: %w", e.Key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Has implements Store.
func (s *FS) Has(ctx context.Context, key gocid.Cid) (bool, error) {
	_, err := s.fs.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Close implements Store.
func (s *FS) Close() error { return nil }
