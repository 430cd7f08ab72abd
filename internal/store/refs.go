package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/spf13/afero"

	"github.com/systemshift/memex-vcs/internal/errors"
)

// RefStore manages named refs as files. Each ref is a file in the refs
// directory holding either a key or a plain string.
// Filenames use URL-safe encoding: colons become double underscores.
type RefStore struct {
	fs  afero.Fs
	dir string
}

// NewRefStore creates a RefStore at the given directory.
func NewRefStore(fsys afero.Fs, dir string) (*RefStore, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create refs dir: %w", err)
	}
	return &RefStore{fs: fsys, dir: dir}, nil
}

func refFilename(id string) string {
	return strings.ReplaceAll(id, ":", "__")
}

func refIDFromFilename(name string) string {
	return strings.ReplaceAll(name, "__", ":")
}

func (r *RefStore) path(id string) string {
	return filepath.Join(r.dir, refFilename(id))
}

// Set writes a ref mapping id -> key.
func (r *RefStore) Set(id string, c gocid.Cid) error {
	encoded, err := multibase.Encode(multibase.Base32, c.Bytes())
	if err != nil {
		return fmt.Errorf("encode ref %s: %w", id, err)
	}
	return SafeWrite(r.fs, r.path(id), []byte(encoded), 0644)
}

// Get resolves a ref to a key.
func (r *RefStore) Get(id string) (gocid.Cid, error) {
	s, err := r.GetString(id)
	if err != nil {
		return gocid.Undef, err
	}
	_, raw, err := multibase.Decode(s)
	if err != nil {
		return gocid.Undef, fmt.Errorf("decode ref %s: %w", id, err)
	}
	return gocid.Cast(raw)
}

// SetString writes a ref holding a plain string.
func (r *RefStore) SetString(id, value string) error {
	return SafeWrite(r.fs, r.path(id), []byte(value), 0644)
}

// GetString reads a ref as a plain string.
func (r *RefStore) GetString(id string) (string, error) {
	data, err := afero.ReadFile(r.fs, r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.ErrNotFound.Wrap(fmt.Errorf("ref %s", id))
		}
		return "", fmt.Errorf("read ref %s: %w", id, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Delete removes a ref. Deleting a missing ref is not an error.
func (r *RefStore) Delete(id string) error {
	err := r.fs.Remove(r.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete ref %s: %w", id, err)
	}
	return nil
}

// Has checks if a ref exists.
func (r *RefStore) Has(id string) bool {
	_, err := r.fs.Stat(r.path(id))
	return err == nil
}

// List returns the ids of all refs starting with prefix, sorted.
func (r *RefStore) List(prefix string) ([]string, error) {
	entries, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		id := refIDFromFilename(e.Name())
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
