package repo

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/schema"
)

// Branch creates a branch at the current head and attaches the workspace to
// it, returning the new branch key. A non-empty nickname is recorded for it.
// Branching from a detached head re-attaches the workspace and makes its
// root writable again.
func (r *Repository) Branch(nickname string) (string, error) {
	if r.current != nil {
		switch n := len(r.current.CommitRefs); {
		case n == 0:
			return "", errors.ErrInvalidState.Wrap(fmt.Errorf("branch %s has no commits to branch from", r.branchName(r.current)))
		case n > 1:
			return "", errors.ErrInvalidState.Wrap(fmt.Errorf("branch %s has diverged into %d heads", r.branchName(r.current), n))
		}
	}
	nickname = nicknameKey(nickname)
	if nickname != "" {
		if _, taken := r.nicknames[nickname]; taken {
			return "", errors.ErrInvalidArgument.Wrap(fmt.Errorf("branch nickname %q is already in use", nickname))
		}
	}

	b := &schema.Branch{Key: uuid.NewString()}
	if r.current != nil {
		b.CommitRefs = []*schema.Link{r.current.CommitRefs[0].Persistent()}
	}
	h := r.headRecord()
	h.Branches = append(h.Branches, b)
	r.head.rebind()
	for _, l := range b.CommitRefs {
		if head := r.resident(l); head != nil {
			head.parents[l] = struct{}{}
		}
	}
	if nickname != "" {
		r.nicknames[nickname] = b.Key
	}

	if r.detached {
		r.detached = false
		if r.root != nil {
			r.setStructureReadOnly(r.root, false)
		}
	}
	r.current = b

	r.log.Info("created branch", zap.String("branch", b.Key), zap.String("nickname", nickname))
	return b.Key, nil
}

// GetBranch looks name up as a nickname, then as a branch key. A missing
// branch is logged and yields nil.
func (r *Repository) GetBranch(name string) *schema.Branch {
	key := r.branchKey(name)
	if b := r.headRecord().Branch(key); b != nil {
		return b
	}
	r.log.Info("branch not found", zap.String("branch", name))
	return nil
}

// RemoveBranch drops the branch name refers to, with its nicknames. A
// missing branch is logged and ignored.
func (r *Repository) RemoveBranch(name string) bool {
	key := r.branchKey(name)
	if !r.headRecord().RemoveBranch(key) {
		r.log.Info("branch not found", zap.String("branch", name))
		return false
	}
	r.head.rebind()
	for nick, k := range r.nicknames {
		if k == key {
			delete(r.nicknames, nick)
		}
	}
	if r.current != nil && r.current.Key == key {
		r.current = nil
	}
	r.log.Info("removed branch", zap.String("branch", key))
	return true
}

// branchName is the nickname of b when it has one, else its key.
func (r *Repository) branchName(b *schema.Branch) string {
	if nick := r.NicknameOf(b.Key); nick != "" {
		return nick
	}
	return b.Key
}

// nicknameKey is the NFC form a nickname is stored and looked up under, so a
// name typed with composed or decomposed accents addresses one branch.
func nicknameKey(name string) string {
	return norm.NFC.String(name)
}

// branchKey maps a nickname to its branch key. Anything else is taken to be
// a key already.
func (r *Repository) branchKey(name string) string {
	if k, ok := r.nicknames[nicknameKey(name)]; ok {
		return k
	}
	return name
}
