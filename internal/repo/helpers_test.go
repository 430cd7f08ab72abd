package repo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gocid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/schema"
	"github.com/systemshift/memex-vcs/internal/store"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// at is the date a testClock hands out at step n.
func at(n int64) time.Time {
	return epoch.Add(time.Duration(n) * time.Second)
}

// testClock is a deterministic commit clock: the n-th call to Now returns at(n).
type testClock struct {
	mu  sync.Mutex
	seq int64
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return at(c.seq)
}

// Set makes the next call to Now return at(n).
func (c *testClock) Set(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = n - 1
}

func newTestRepo(t *testing.T, s store.Store, opts ...Option) (*Repository, *testClock) {
	t.Helper()
	clock := &testClock{}
	opts = append([]Option{WithClock(clock.Now), WithLogger(zaptest.NewLogger(t))}, opts...)
	r, err := New(s, opts...)
	require.NoError(t, err)
	return r, clock
}

func loadTestRepo(t *testing.T, s store.Store, head gocid.Cid, opts ...Option) (*Repository, *testClock) {
	t.Helper()
	clock := &testClock{}
	opts = append([]Option{WithClock(clock.Now), WithLogger(zaptest.NewLogger(t))}, opts...)
	r, err := Load(context.Background(), s, head, opts...)
	require.NoError(t, err)
	return r, clock
}

func node(o *Object) *schema.Node {
	return o.Record().(*schema.Node)
}

func newNode(t *testing.T, r *Repository, name string) *Object {
	t.Helper()
	o, err := r.CreateObject(schema.NodeType)
	require.NoError(t, err)
	setName(t, o, name)
	return o
}

func setName(t *testing.T, o *Object, name string) {
	t.Helper()
	require.NoError(t, o.Update(func(rec schema.Record) error {
		rec.(*schema.Node).Name = name
		return nil
	}))
}

func addChild(t *testing.T, o *Object) *schema.Link {
	t.Helper()
	var l *schema.Link
	require.NoError(t, o.Update(func(rec schema.Record) error {
		l = rec.(*schema.Node).AddChild()
		return nil
	}))
	return l
}

func commit(t *testing.T, r *Repository, comment string) gocid.Cid {
	t.Helper()
	key, err := r.Commit(context.Background(), comment)
	require.NoError(t, err)
	return key
}

func commitObject(t *testing.T, r *Repository, key gocid.Cid) *schema.CommitRef {
	t.Helper()
	c, err := r.Resolve(context.Background(), schema.LinkTo(key, schema.CommitRefType))
	require.NoError(t, err)
	return c.Record().(*schema.CommitRef)
}

// blockingStore stalls loads until the caller's context ends once blocked is set.
type blockingStore struct {
	*store.Memory
	blocked atomic.Bool
}

func (s *blockingStore) Load(ctx context.Context, key gocid.Cid) (*dag.Element, error) {
	if s.blocked.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.Memory.Load(ctx, key)
}

// tamperingStore alters the value of one element on its way out.
type tamperingStore struct {
	*store.Memory
	mu     sync.Mutex
	target gocid.Cid
}

func (s *tamperingStore) setTarget(key gocid.Cid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = key
}

func (s *tamperingStore) Load(ctx context.Context, key gocid.Cid) (*dag.Element, error) {
	e, err := s.Memory.Load(ctx, key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil && s.target.Defined() && key.Equals(s.target) {
		e.Value = append([]byte(" "), e.Value...)
	}
	return e, err
}

// failingStore fails every load once broken is set.
type failingStore struct {
	*store.Memory
	broken atomic.Bool
}

func (s *failingStore) Load(ctx context.Context, key gocid.Cid) (*dag.Element, error) {
	if s.broken.Load() {
		return nil, fmt.Errorf("disk unavailable")
	}
	return s.Memory.Load(ctx, key)
}
