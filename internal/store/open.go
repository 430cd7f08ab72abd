package store

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/systemshift/memex-vcs/internal/config"
	"github.com/systemshift/memex-vcs/internal/errors"
)

// Open returns the backend selected by cfg. Relative paths are resolved
// against base.
func Open(fsys afero.Fs, base string, cfg config.Store) (Store, error) {
	path := cfg.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverFS:
		return NewFS(fsys, path, cfg.WriteConcurrency)
	case config.DriverSQLite:
		return OpenSQLite(path)
	case config.DriverBadger:
		return OpenBadger(path)
	default:
		return nil, errors.ErrInvalidArgument.Wrap(fmt.Errorf("unknown store driver %q", cfg.Driver))
	}
}
