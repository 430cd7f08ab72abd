package cli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/memex-vcs/internal/config"
	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "memex-vcs", cmd.Use)
	assert.Contains(t, cmd.Long, "content key")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"init", "status", "commit", "branch", "branches", "checkout", "log", "merge", "show", "reflog", "mount"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	dirFlag := cmd.PersistentFlags().Lookup("dir")
	require.NotNil(t, dirFlag)
	assert.Equal(t, "C", dirFlag.Shorthand)
	assert.Equal(t, ".", dirFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"driver", "log-level", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestCommitCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	commitCmd, _, err := cmd.Find([]string{"commit"})
	require.NoError(t, err)

	messageFlag := commitCmd.Flags().Lookup("message")
	require.NotNil(t, messageFlag)
	assert.Equal(t, "m", messageFlag.Shorthand)
	assert.NotNil(t, commitCmd.Flags().Lookup("attr"))
	assert.NotNil(t, commitCmd.Flags().Lookup("blob"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, exitCode(errors.ErrInvalidArgument.Wrap(fmt.Errorf("bad flag"))))
	assert.Equal(t, ExitFailure, exitCode(errors.ErrInvalidState))
	assert.Equal(t, ExitFailure, exitCode(fmt.Errorf("boom")))
}

// run executes the CLI against fsys with a working directory of /work.
func run(t *testing.T, fsys afero.Fs, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(fsys)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--dir", "/work", "--log-level", "none"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, fsys afero.Fs, args ...string) string {
	t.Helper()
	out, err := run(t, fsys, args...)
	require.NoError(t, err, "memex-vcs %s: %s", strings.Join(args, " "), out)
	return out
}

// committedKey extracts the key from "[branch key] message".
func committedKey(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 2, out)
	return strings.TrimSuffix(fields[1], "]")
}

func history(t *testing.T, fsys afero.Fs, args ...string) [][]commitJSON {
	t.Helper()
	out := mustRun(t, fsys, append([]string{"--format", "json", "log"}, args...)...)
	var histories [][]commitJSON
	require.NoError(t, dag.JSON().Unmarshal([]byte(out), &histories))
	return histories
}

func TestWorkflow(t *testing.T) {
	fsys := afero.NewMemMapFs()

	out := mustRun(t, fsys, "init")
	assert.Contains(t, out, "Initialized repository")
	assert.Contains(t, out, "on branch master")
	exists, err := afero.Exists(fsys, config.Path("/work"))
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = run(t, fsys, "init")
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	out = mustRun(t, fsys, "commit", "-m", "v2", "--name", "two", "--attr", "color=blue")
	assert.True(t, strings.HasPrefix(out, "[master "), out)
	v2 := committedKey(t, out)

	out = mustRun(t, fsys, "status")
	assert.Contains(t, out, "status: up to date")
	assert.Contains(t, out, "branch: master")

	histories := history(t, fsys)
	require.Len(t, histories, 1)
	require.Len(t, histories[0], 2)
	assert.Equal(t, v2, histories[0][0].Key)
	assert.Equal(t, "v2", histories[0][0].Comment)
	assert.Equal(t, "init", histories[0][1].Comment)
	initKey := histories[0][1].Key
	assert.Equal(t, "parent", histories[0][0].Parents[initKey])

	out = mustRun(t, fsys, "log")
	assert.Contains(t, out, "commit "+v2)
	assert.Contains(t, out, "    init")

	out = mustRun(t, fsys, "branch", "dev")
	assert.Contains(t, out, "Switched to a new branch dev")
	out = mustRun(t, fsys, "commit", "-m", "on dev", "--attr", "side=dev")
	assert.True(t, strings.HasPrefix(out, "[dev "), out)
	devKey := committedKey(t, out)

	out = mustRun(t, fsys, "branches")
	assert.Contains(t, out, "* dev\t"+devKey)
	assert.Contains(t, out, "  master\t"+v2)

	out = mustRun(t, fsys, "checkout", "master")
	assert.Contains(t, out, "Switched to branch master")

	out = mustRun(t, fsys, "merge", "dev")
	assert.Contains(t, out, "Merge dev")
	merged := history(t, fsys, "master")[0][0]
	assert.Equal(t, "merged_from", merged.Parents[devKey])
	assert.Equal(t, "parent", merged.Parents[v2])
	out = mustRun(t, fsys, "show", merged.Root)
	assert.Contains(t, out, `"side":"dev"`)
	assert.Contains(t, out, `"color":"blue"`)

	out = mustRun(t, fsys, "checkout", "master", "--commit", initKey)
	assert.Contains(t, out, "HEAD detached at "+initKey)
	out = mustRun(t, fsys, "status")
	assert.Contains(t, out, "detached at")

	_, err = run(t, fsys, "commit", "-m", "refused")
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	_, err = run(t, fsys, "commit", "-m", "refused", "--name", "x")
	assert.True(t, errors.Is(err, errors.ErrImmutable))

	out = mustRun(t, fsys, "branch", "fix")
	assert.Contains(t, out, "Switched to a new branch fix")
	out = mustRun(t, fsys, "commit", "-m", "fix", "--name", "fixed")
	assert.True(t, strings.HasPrefix(out, "[fix "), out)
	fix := history(t, fsys, "fix")[0]
	require.Len(t, fix, 2)
	assert.Equal(t, initKey, fix[1].Key)

	out = mustRun(t, fsys, "reflog", "-n", "0")
	assert.Contains(t, out, "commit: v2")
	assert.Contains(t, out, "checkout master")
	assert.Contains(t, out, "branch fix")

	out = mustRun(t, fsys, "show", v2)
	assert.Contains(t, out, "CommitRef")
	assert.Contains(t, out, "leaf     false")
}

func TestCommitBlob(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mustRun(t, fsys, "init")
	require.NoError(t, afero.WriteFile(fsys, "/work/data.txt", []byte("payload"), 0o644))

	mustRun(t, fsys, "commit", "-m", "blob", "--blob", "/work/data.txt")
	root := history(t, fsys)[0][0].Root

	out := mustRun(t, fsys, "--format", "json", "show", root)
	var shown struct {
		Type     string   `json:"type"`
		Children []string `json:"children"`
	}
	require.NoError(t, dag.JSON().Unmarshal([]byte(out), &shown))
	assert.Equal(t, "Node", shown.Type)
	require.Len(t, shown.Children, 1)

	out = mustRun(t, fsys, "show", shown.Children[0])
	assert.Contains(t, out, "Blob")
	assert.Contains(t, out, "leaf     true")
	assert.Contains(t, out, "payload")
}

func TestCheckoutOlderThan(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mustRun(t, fsys, "init")
	mustRun(t, fsys, "commit", "-m", "second", "--name", "second")

	out := mustRun(t, fsys, "checkout", "master", "--older-than", "2999-01-01T00:00:00Z")
	assert.Contains(t, out, "HEAD detached at")

	_, err := run(t, fsys, "checkout", "master", "--older-than", "2000-01-01T00:00:00Z")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = run(t, fsys, "checkout", "master", "--older-than", "yesterday")
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestCommandErrors(t *testing.T) {
	fsys := afero.NewMemMapFs()

	_, err := run(t, fsys, "status")
	assert.True(t, errors.Is(err, errors.ErrInvalidState), "not a repository")

	_, err = run(t, fsys, "--driver", "bogus", "init")
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = run(t, fsys, "--format", "xml", "status")
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	mustRun(t, fsys, "init")
	_, err = run(t, fsys, "commit", "-m", "x", "--attr", "novalue")
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = run(t, fsys, "checkout", "nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = run(t, fsys, "merge")
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = run(t, fsys, "branch", "-d", "master")
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	mustRun(t, fsys, "branch", "dev")
	out := mustRun(t, fsys, "branch", "-d", "master")
	assert.Contains(t, out, "Deleted branch master")
	out = mustRun(t, fsys, "branches")
	assert.NotContains(t, out, "master")
}
