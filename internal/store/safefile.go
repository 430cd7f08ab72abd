package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// tempPattern names in-flight writes; the store never loads dot files.
const tempPattern = ".tmp-*"

// flush writes data to f, syncs it and closes it. The file is closed on
// every path.
func flush(f afero.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		return multierr.Append(fmt.Errorf("write %s: %w", f.Name(), err), f.Close())
	}
	if err := f.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("fsync %s: %w", f.Name(), err), f.Close())
	}
	return f.Close()
}

// SafeWrite replaces path with data so that readers see either the old or
// the new content. The data goes to a sibling temp file which is renamed
// over path; the parent directory must exist.
func SafeWrite(fsys afero.Fs, path string, data []byte, perm os.FileMode) error {
	f, err := afero.TempFile(fsys, filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmp := f.Name()
	if err := flush(f, data); err != nil {
		return multierr.Append(err, fsys.Remove(tmp))
	}
	if err := fsys.Chmod(tmp, perm); err != nil {
		return multierr.Append(fmt.Errorf("chmod %s: %w", tmp, err), fsys.Remove(tmp))
	}
	if err := fsys.Rename(tmp, path); err != nil {
		return multierr.Append(fmt.Errorf("rename %s: %w", path, err), fsys.Remove(tmp))
	}
	return nil
}

// SafeAppend adds data to the end of path, creating it if needed.
func SafeAppend(fsys afero.Fs, path string, data []byte) error {
	f, err := fsys.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	return flush(f, data)
}
