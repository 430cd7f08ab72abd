package store

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/systemshift/memex-vcs/internal/dag"
)

// ReflogEntry records one update of the persisted repository head.
type ReflogEntry struct {
	Time    time.Time `json:"ts"`
	Head    string    `json:"head"`
	Branch  string    `json:"branch,omitempty"`
	Commit  string    `json:"commit,omitempty"`
	Message string    `json:"message"`
}

// Reflog is an append-only JSONL journal of head updates, mirrored in memory.
type Reflog struct {
	mu      sync.RWMutex
	fs      afero.Fs
	path    string
	entries []ReflogEntry
}

// NewReflog opens the journal at path, loading existing entries.
func NewReflog(fsys afero.Fs, path string) (*Reflog, error) {
	l := &Reflog{fs: fsys, path: path}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Reflog) load() error {
	f, err := l.fs.Open(l.path)
	if os.IsNotExist(err) {
		return nil // no journal yet
	}
	if err != nil {
		return fmt.Errorf("open reflog: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry ReflogEntry
		if err := dag.JSON().Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		l.entries = append(l.entries, entry)
	}
	return scanner.Err()
}

// Append writes entry to the journal.
func (l *Reflog) Append(entry ReflogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := dag.JSON().Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode reflog entry: %w", err)
	}
	if err := SafeAppend(l.fs, l.path, append(data, '\n')); err != nil {
		return fmt.Errorf("write reflog entry: %w", err)
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (l *Reflog) Recent(n int) []ReflogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]ReflogEntry, 0, n)
	for i := len(l.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}
