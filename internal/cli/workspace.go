package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gocid "github.com/ipfs/go-cid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/systemshift/memex-vcs/internal/config"
	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/logging"
	"github.com/systemshift/memex-vcs/internal/repo"
	"github.com/systemshift/memex-vcs/internal/store"
)

// Refs kept under .mvcs/refs between invocations.
const (
	refHead     = "HEAD"     // key of the saved branch table
	refBranch   = "branch"   // key of the checked out branch
	refDetached = "detached" // key of the checked out commit, when detached
	nickPrefix  = "nick:"    // nick:<name> holds a branch key

	refsDir    = "refs"
	reflogFile = "reflog.jsonl"
)

// workspace is a working directory opened by one command.
type workspace struct {
	opts   *RootOptions
	cfg    config.Config
	log    *zap.Logger
	store  store.Store
	refs   *store.RefStore
	reflog *store.Reflog
	repo   *repo.Repository

	// branch is the key of the branch the workspace was checked out from,
	// also while detached.
	branch string
}

// loadConfig reads the settings file and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.fs, config.Path(opts.Dir))
	if err != nil {
		return cfg, err
	}
	if opts.Driver != "" {
		cfg.Store.Driver = opts.Driver
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Verbose {
		cfg.Log.Level = logging.LogLevelDebug
	}
	return cfg, cfg.Validate()
}

// openWorkspace opens the store and ref files without loading the repository.
func openWorkspace(opts *RootOptions, cfg config.Config) (*workspace, error) {
	log, err := logging.GetLogger(cfg.Log.Level)
	if err != nil {
		return nil, errors.ErrInvalidArgument.Wrap(err)
	}
	dir := filepath.Join(opts.Dir, config.Dir)
	s, err := store.Open(opts.fs, dir, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	w := &workspace{opts: opts, cfg: cfg, log: log, store: s}
	if w.refs, err = store.NewRefStore(opts.fs, filepath.Join(dir, refsDir)); err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	if w.reflog, err = store.NewReflog(opts.fs, filepath.Join(dir, reflogFile)); err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	return w, nil
}

// openRepository opens an initialized working directory and checks out the
// branch or commit recorded by the previous command.
func openRepository(ctx context.Context, opts *RootOptions) (*workspace, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	w, err := openWorkspace(opts, cfg)
	if err != nil {
		return nil, err
	}
	if err := w.load(ctx); err != nil {
		return nil, multierr.Append(err, w.close())
	}
	return w, nil
}

func (w *workspace) repoOptions(extra ...repo.Option) []repo.Option {
	return append([]repo.Option{
		repo.WithLogger(w.log),
		repo.WithDefaultBranch(w.cfg.Repository.DefaultBranch),
	}, extra...)
}

func (w *workspace) load(ctx context.Context) error {
	head, err := w.refs.Get(refHead)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.ErrInvalidState.Wrap(fmt.Errorf("%s is not a repository, run init first", w.opts.Dir))
		}
		return err
	}
	nicknames, err := w.nicknames()
	if err != nil {
		return err
	}
	r, err := repo.Load(ctx, w.store, head, w.repoOptions(repo.WithNicknames(nicknames))...)
	if err != nil {
		return err
	}
	w.repo = r

	w.branch, err = w.refs.GetString(refBranch)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var opts []repo.CheckoutOption
	if id, err := w.refs.GetString(refDetached); err == nil {
		opts = append(opts, repo.AtCommit(id))
	}
	if b := r.GetBranch(w.branch); b == nil || len(b.CommitRefs) == 0 {
		w.log.Warn("recorded branch has nothing to check out", zap.String("branch", w.branch))
		return nil
	}
	if _, err := r.Checkout(ctx, w.branch, opts...); err != nil {
		return fmt.Errorf("restore workspace: %w", err)
	}
	return nil
}

func (w *workspace) nicknames() (map[string]string, error) {
	ids, err := w.refs.List(nickPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		key, err := w.refs.GetString(id)
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(id, nickPrefix)] = key
	}
	return out, nil
}

// save stores the branch table, records the refs needed to restore the
// workspace and journals the update.
func (w *workspace) save(ctx context.Context, message string, commit gocid.Cid) error {
	head, err := w.repo.SaveHead(ctx)
	if err != nil {
		return err
	}
	if err := w.refs.Set(refHead, head); err != nil {
		return err
	}

	cur := w.repo.CurrentBranch()
	if cur != nil && !w.repo.Detached() {
		w.branch = cur.Key
	}
	if w.branch != "" {
		if err := w.refs.SetString(refBranch, w.branch); err != nil {
			return err
		}
	}
	if w.repo.Detached() {
		err = w.refs.SetString(refDetached, cur.CommitRefs[0].Key.String())
	} else {
		err = w.refs.Delete(refDetached)
	}
	if err != nil {
		return err
	}

	old, err := w.refs.List(nickPrefix)
	if err != nil {
		return err
	}
	for _, id := range old {
		if err := w.refs.Delete(id); err != nil {
			return err
		}
	}
	for nick, key := range w.repo.Nicknames() {
		if err := w.refs.SetString(nickPrefix+nick, key); err != nil {
			return err
		}
	}

	entry := store.ReflogEntry{
		Time:    time.Now().UTC(),
		Head:    head.String(),
		Branch:  w.branchName(),
		Message: message,
	}
	if commit.Defined() {
		entry.Commit = commit.String()
	}
	return w.reflog.Append(entry)
}

// branchName is the nickname of the workspace branch, or its key.
func (w *workspace) branchName() string {
	if w.branch == "" {
		return ""
	}
	if nick := w.repo.NicknameOf(w.branch); nick != "" {
		return nick
	}
	return w.branch
}

func (w *workspace) close() error {
	err := w.store.Close()
	// Sync on a console logger bound to stderr may fail with EINVAL
	_ = w.log.Sync()
	return err
}
