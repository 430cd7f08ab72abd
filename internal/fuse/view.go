package fuse

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/repo"
	"github.com/systemshift/memex-vcs/internal/schema"
)

const maxLogEntries = 64

// View is the read side of a repository as the mount presents it. FUSE
// callbacks arrive on many goroutines; View serializes them.
type View struct {
	mu   sync.Mutex
	repo *repo.Repository
	log  *zap.Logger
}

// NewView wraps r. A nil logger discards.
func NewView(r *repo.Repository, log *zap.Logger) *View {
	if log == nil {
		log = zap.NewNop()
	}
	return &View{repo: r, log: log}
}

// Head returns the key of the serialized branch table, newline terminated.
func (v *View) Head() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, err := v.repo.HeadElement()
	if err != nil {
		return nil, err
	}
	return []byte(e.Key.String() + "\n"), nil
}

// BranchNames lists branches by nickname, or by key when they have none.
func (v *View) BranchNames() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	branches := v.repo.Branches()
	names := make([]string, 0, len(branches))
	for _, b := range branches {
		name := v.repo.NicknameOf(b.Key)
		if name == "" {
			name = b.Key
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *View) branch(name string) (*schema.Branch, error) {
	b := v.repo.GetBranch(name)
	if b == nil {
		return nil, errors.ErrNotFound.Wrap(fmt.Errorf("branch %q", name))
	}
	return b, nil
}

// HasBranch reports whether name is a nickname or key of a branch.
func (v *View) HasBranch(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.branch(name)
	return err == nil
}

// Heads returns the head keys of branch, one per line.
func (v *View) Heads(name string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, err := v.branch(name)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, l := range b.CommitRefs {
		sb.WriteString(l.Key.String())
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

type logParent struct {
	Key      string          `json:"key"`
	Relation schema.Relation `json:"relation"`
}

// LogEntry is the JSON form of one commit under log/.
type LogEntry struct {
	Key     string      `json:"key"`
	Date    time.Time   `json:"date"`
	Comment string      `json:"comment"`
	Root    string      `json:"root,omitempty"`
	Parents []logParent `json:"parents,omitempty"`
}

func entryOf(info repo.CommitInfo) LogEntry {
	e := LogEntry{Key: info.Key.String(), Date: info.Date, Comment: info.Comment}
	if info.Root.Defined() {
		e.Root = info.Root.String()
	}
	for _, p := range info.Parents {
		e.Parents = append(e.Parents, logParent{Key: p.Key.String(), Relation: p.Relation})
	}
	return e
}

// Log returns the first-parent history of the first head of branch, newest
// first, at most maxLogEntries long.
func (v *View) Log(ctx context.Context, name string) ([]LogEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, err := v.branch(name)
	if err != nil {
		return nil, err
	}
	histories, err := v.repo.LogCommits(ctx, b.Key)
	if err != nil {
		return nil, err
	}
	if len(histories) == 0 {
		return nil, nil
	}
	history := histories[0]
	if len(history) > maxLogEntries {
		history = history[:maxLogEntries]
	}
	entries := make([]LogEntry, len(history))
	for i, info := range history {
		entries[i] = entryOf(info)
	}
	return entries, nil
}

// LogEntryJSON renders entry i of the log of branch as indented JSON.
func (v *View) LogEntryJSON(ctx context.Context, name string, i int) ([]byte, error) {
	entries, err := v.Log(ctx, name)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(entries) {
		return nil, errors.ErrNotFound.Wrap(fmt.Errorf("log entry %d of branch %q", i, name))
	}
	data, err := dag.JSON().MarshalIndent(entries[i], "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Object returns the raw value of the element with the given key.
func (v *View) Object(ctx context.Context, key string) ([]byte, error) {
	k, err := dag.ParseKey(key)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	e, err := v.repo.Store().Load(ctx, k)
	if err != nil {
		v.log.Debug("object lookup failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return e.Value, nil
}
