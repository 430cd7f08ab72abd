// Package repo implements a versioned object repository: a mutable workspace
// of typed records, committed into a content-addressed commit graph and
// organized in branches.
//
// A Repository is owned by a single goroutine. The only suspension points are
// content store loads and stores, which honour the caller's context.
package repo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocid "github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/schema"
	"github.com/systemshift/memex-vcs/internal/store"
)

// DetachedBranchKey is the key of the synthetic branch used while a
// historical commit is checked out.
const DetachedBranchKey = "detached head"

// Status of the workspace.
type Status int

const (
	// Uninitialized: no root object yet.
	Uninitialized Status = iota
	// UpToDate: the root has not changed since it was committed or loaded.
	UpToDate
	// Modified: the root or one of its descendants changed.
	Modified
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case UpToDate:
		return "up to date"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Repository is a workspace over a content store.
type Repository struct {
	store    store.Store
	registry *schema.Registry
	log      *zap.Logger
	now      func() time.Time

	defaultBranch string

	counter   uint64
	workspace map[uint64]*Object
	root      *Object
	commits   map[string]*Object
	owners    map[*schema.Link]*Object

	head      *Object
	current   *schema.Branch
	nicknames map[string]string
	detached  bool

	mergeFrom  []*Object
	mergeRoots []*Object
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRegistry sets the type registry. The default is schema.DefaultRegistry().
func WithRegistry(reg *schema.Registry) Option {
	return func(r *Repository) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithClock sets the source of commit dates.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithNicknames seeds the branch nickname table.
func WithNicknames(nicknames map[string]string) Option {
	return func(r *Repository) {
		for k, v := range nicknames {
			r.nicknames[nicknameKey(k)] = v
		}
	}
}

// WithDefaultBranch sets the nickname of the branch created by New. An empty
// name creates the branch without a nickname.
func WithDefaultBranch(name string) Option {
	return func(r *Repository) {
		r.defaultBranch = name
	}
}

func newRepository(s store.Store, opts []Option) *Repository {
	r := &Repository{
		store:         s,
		registry:      schema.DefaultRegistry(),
		log:           zap.NewNop(),
		now:           func() time.Time { return time.Now().UTC() },
		defaultBranch: "master",
		workspace:     make(map[uint64]*Object),
		commits:       make(map[string]*Object),
		owners:        make(map[*schema.Link]*Object),
		nicknames:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// New creates an empty repository over s, with one branch that has no commits yet.
func New(s store.Store, opts ...Option) (*Repository, error) {
	r := newRepository(s, opts)
	r.head = r.wrap(&schema.MutableHead{RepositoryKey: uuid.NewString()})
	r.head.isRoot = false
	if _, err := r.Branch(r.defaultBranch); err != nil {
		return nil, err
	}
	r.log.Debug("repository created",
		zap.String("repository", r.RepositoryKey()),
		zap.String("branch", r.current.Key))
	return r, nil
}

func (r *Repository) headRecord() *schema.MutableHead {
	return r.head.record.(*schema.MutableHead)
}

// Status of the workspace root.
func (r *Repository) Status() Status {
	switch {
	case r.root == nil:
		return Uninitialized
	case r.root.modified:
		return Modified
	default:
		return UpToDate
	}
}

// Root returns the workspace root, or nil.
func (r *Repository) Root() *Object {
	return r.root
}

// RepositoryKey is the GUID of the repository.
func (r *Repository) RepositoryKey() string {
	return r.headRecord().RepositoryKey
}

// Branches returns the branches of the repository.
func (r *Repository) Branches() []*schema.Branch {
	return append([]*schema.Branch(nil), r.headRecord().Branches...)
}

// CurrentBranch returns the branch the workspace is attached to, the
// synthetic detached branch, or nil.
func (r *Repository) CurrentBranch() *schema.Branch {
	return r.current
}

// Detached reports whether a historical commit is checked out.
func (r *Repository) Detached() bool {
	return r.detached
}

// Nicknames returns a copy of the nickname table.
func (r *Repository) Nicknames() map[string]string {
	out := make(map[string]string, len(r.nicknames))
	for k, v := range r.nicknames {
		out[k] = v
	}
	return out
}

// NicknameOf returns a nickname of the branch with key, or "".
func (r *Repository) NicknameOf(key string) string {
	best := ""
	for nick, k := range r.nicknames {
		if k == key && (best == "" || nick < best) {
			best = nick
		}
	}
	return best
}

// MergeObjects returns the read-only roots of the pending merge sources.
func (r *Repository) MergeObjects() []*Object {
	return append([]*Object(nil), r.mergeRoots...)
}

// Registry returns the type registry.
func (r *Repository) Registry() *schema.Registry {
	return r.registry
}

// Store returns the content store.
func (r *Repository) Store() store.Store {
	return r.store
}

func (r *Repository) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository %s\n", r.RepositoryKey())
	fmt.Fprintf(&b, "  status: %s\n", r.Status())
	if r.current != nil {
		name := r.current.Key
		if nick := r.NicknameOf(name); nick != "" {
			name = nick
		}
		fmt.Fprintf(&b, "  branch: %s", name)
		if r.detached {
			fmt.Fprintf(&b, " (detached at %s)", dag.ShortKey(r.current.CommitRefs[0].Key))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  branches: %d\n", len(r.headRecord().Branches))
	fmt.Fprintf(&b, "  workspace objects: %d\n", len(r.workspace))
	fmt.Fprintf(&b, "  commits loaded: %d\n", len(r.commits))
	if len(r.mergeFrom) > 0 {
		keys := make([]string, len(r.mergeFrom))
		for i, m := range r.mergeFrom {
			keys[i] = dag.ShortKey(m.key)
		}
		fmt.Fprintf(&b, "  merging: %s\n", strings.Join(keys, ", "))
	}
	return b.String()
}

// commitByKey returns the loaded commit with key, if any.
func (r *Repository) commitByKey(key gocid.Cid) (*Object, bool) {
	o, ok := r.commits[key.KeyString()]
	return o, ok
}
