package repo

import (
	"context"
	"fmt"
	"time"

	gocid "github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/schema"
)

// ParentInfo is one parent edge of a logged commit.
type ParentInfo struct {
	Key      gocid.Cid
	Relation schema.Relation
}

// CommitInfo summarizes one commit.
type CommitInfo struct {
	Key     gocid.Cid
	Date    time.Time
	Comment string
	Root    gocid.Cid
	Parents []ParentInfo
}

func infoOf(c *Object) CommitInfo {
	cref := c.commit()
	info := CommitInfo{Key: c.key, Date: cref.Date, Comment: cref.Comment}
	if cref.ObjectRoot != nil {
		info.Root = cref.ObjectRoot.Key
	}
	for _, p := range cref.Parents {
		if p.Commit != nil {
			info.Parents = append(info.Parents, ParentInfo{Key: p.Commit.Key, Relation: p.Relation})
		}
	}
	return info
}

// LogCommits returns, for each head of branch, its first-parent history,
// newest first. An empty name logs the current branch.
func (r *Repository) LogCommits(ctx context.Context, branch string) ([][]CommitInfo, error) {
	var b *schema.Branch
	if branch == "" {
		b = r.current
	} else {
		b = r.GetBranch(branch)
	}
	if b == nil {
		return nil, errors.ErrNotFound.Wrap(fmt.Errorf("branch %q", branch))
	}

	histories := make([][]CommitInfo, 0, len(b.CommitRefs))
	for i, head := range b.CommitRefs {
		var history []CommitInfo
		for l := head; l != nil; {
			c, err := r.Resolve(ctx, l)
			if err != nil {
				return nil, fmt.Errorf("log: %w", err)
			}
			info := infoOf(c)
			history = append(history, info)
			r.log.Debug("commit",
				zap.Int("head", i),
				zap.Stringer("key", info.Key),
				zap.Time("date", info.Date),
				zap.String("comment", info.Comment))
			l = c.commit().FirstParent()
		}
		histories = append(histories, history)
	}
	return histories, nil
}
