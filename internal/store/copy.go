package store

import (
	"context"
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/systemshift/memex-vcs/internal/dag"
)

// Copy transfers the element graph rooted at root from src to dst. Subgraphs
// whose root dst already holds are not visited.
func Copy(ctx context.Context, src, dst Store, root gocid.Cid) error {
	var batch []*dag.Element
	seen := make(map[string]bool)
	queue := []gocid.Cid{root}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if seen[key.KeyString()] {
			continue
		}
		seen[key.KeyString()] = true

		has, err := dst.Has(ctx, key)
		if err != nil {
			return fmt.Errorf("copy %s: %w", key, err)
		}
		if has {
			continue
		}
		e, err := Await(ctx, LoadAsync(ctx, src, key))
		if err != nil {
			return fmt.Errorf("copy %s: %w", key, err)
		}
		batch = append(batch, e)
		queue = append(queue, e.ChildKeys...)
	}
	if len(batch) == 0 {
		return nil
	}
	return AwaitStore(ctx, StoreAsync(ctx, dst, batch))
}
