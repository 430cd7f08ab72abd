package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/memex-vcs/internal/errors"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), Path("/work"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "master", cfg.Repository.DefaultBranch)
	assert.Equal(t, DriverFS, cfg.Store.Driver)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, Path("/work"), []byte(`
store:
  driver: sqlite
  path: elements.db
log:
  level: debug
`), 0o644))

	cfg, err := Load(fsys, Path("/work"))
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "elements.db", cfg.Store.Path)
	assert.Equal(t, 4, cfg.Store.WriteConcurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "master", cfg.Repository.DefaultBranch)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"driver", "store:\n  driver: tape\n"},
		{"concurrency", "store:\n  write_concurrency: 0\n"},
		{"path", "store:\n  driver: badger\n  path: \"\"\n"},
		{"level", "log:\n  level: chatty\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fsys, "/c.yaml", []byte(tt.yaml), 0o644))
			_, err := Load(fsys, "/c.yaml")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/c.yaml", []byte("store: [\n"), 0o644))
	_, err := Load(fsys, "/c.yaml")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := Default()
	cfg.Store.Driver = DriverBadger
	cfg.Repository.DefaultBranch = "main"

	require.NoError(t, Save(fsys, Path("/w"), cfg))
	got, err := Load(fsys, Path("/w"))
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
