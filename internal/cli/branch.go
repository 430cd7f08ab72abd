package cli

import (
	"fmt"
	"time"

	gocid "github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/repo"
	"github.com/systemshift/memex-vcs/internal/schema"
)

// NewBranchCommand creates the branch command.
func NewBranchCommand(rootOpts *RootOptions) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "branch <name>",
		Short: "Create a branch at the current head and switch to it",
		Long: `Create a branch at the current head and switch to it. From a detached
head this makes the checked out commit writable again.

With --delete the branch is removed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				ctx := cmd.Context()
				name := args[0]
				if remove {
					b := w.repo.GetBranch(name)
					if b == nil {
						return errors.ErrNotFound.Wrap(fmt.Errorf("branch %q", name))
					}
					if b.Key == w.branch {
						return errors.ErrInvalidState.Wrap(fmt.Errorf("cannot delete the checked out branch %q", name))
					}
					w.repo.RemoveBranch(name)
					if err := w.save(ctx, "delete branch "+name, gocid.Undef); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted branch %s\n", name)
					return nil
				}

				key, err := w.repo.Branch(name)
				if err != nil {
					return err
				}
				if err := w.save(ctx, "branch "+name, gocid.Undef); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Switched to a new branch %s (%s)\n", name, key)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&remove, "delete", "d", false, "delete the branch")
	return cmd
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		commitID  string
		olderThan string
	)
	cmd := &cobra.Command{
		Use:   "checkout <branch>",
		Short: "Check out a branch or one of its commits",
		Long: `Check out the head of a branch. A diverged branch is first merged,
keeping the newest head.

With --commit or --older-than a past commit of the branch is checked out
read-only (detached head). Run "branch" to commit on top of it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				ctx := cmd.Context()
				branch := args[0]
				var opts []repo.CheckoutOption
				if commitID != "" {
					opts = append(opts, repo.AtCommit(commitID))
				}
				if olderThan != "" {
					t, err := time.Parse(time.RFC3339, olderThan)
					if err != nil {
						return errors.ErrInvalidArgument.Wrap(fmt.Errorf("--older-than: %w", err))
					}
					opts = append(opts, repo.OlderThan(t))
				}
				if _, err := w.repo.Checkout(ctx, branch, opts...); err != nil {
					return err
				}
				w.branch = w.repo.GetBranch(branch).Key

				at := w.repo.CurrentBranch().CommitRefs[0].Key
				if err := w.save(ctx, "checkout "+branch, at); err != nil {
					return err
				}
				if w.repo.Detached() {
					fmt.Fprintf(cmd.OutOrStdout(), "HEAD detached at %s\n", at)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Switched to branch %s\n", w.branchName())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&commitID, "commit", "", "key of the commit to check out")
	cmd.Flags().StringVar(&olderThan, "older-than", "", "check out the newest commit dated at or before this RFC 3339 time")
	return cmd
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		commitID string
		message  string
	)
	cmd := &cobra.Command{
		Use:   "merge [branch]",
		Short: "Merge a branch or commit into the checked out branch",
		Long: `Merge the head(s) of a branch, or the commit given with --commit, into the
checked out branch and commit the result. Root attributes of the merged
commits override those of the workspace; their children are appended.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				ctx := cmd.Context()
				branch := ""
				if len(args) == 1 {
					branch = args[0]
				}
				if err := w.repo.Merge(ctx, branch, commitID); err != nil {
					return err
				}
				if err := mergeRoots(cmd, w); err != nil {
					return err
				}
				if message == "" {
					source := branch
					if commitID != "" {
						source = shortKeyOf(commitID)
					}
					message = "Merge " + source
				}
				key, err := w.repo.Commit(ctx, message)
				if err != nil {
					return err
				}
				if err := w.save(ctx, "merge: "+message, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", w.branchName(), key, message)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&commitID, "commit", "", "key of the commit to merge")
	cmd.Flags().StringVarP(&message, "message", "m", "", "merge commit comment")
	return cmd
}

// mergeRoots copies the attributes and children of the merge sources into
// the workspace root.
func mergeRoots(cmd *cobra.Command, w *workspace) error {
	root := w.repo.Root()
	if root == nil {
		return errors.ErrInvalidState.Wrap(fmt.Errorf("nothing checked out"))
	}
	if _, ok := root.Record().(*schema.Node); !ok {
		return nil
	}
	for _, src := range w.repo.MergeObjects() {
		n, ok := src.Record().(*schema.Node)
		if !ok {
			continue
		}
		var added []*schema.Link
		if err := root.Update(func(rec schema.Record) error {
			dst := rec.(*schema.Node)
			for k, v := range n.Attrs {
				dst.Set(k, v)
			}
			for range n.Children {
				added = append(added, dst.AddChild())
			}
			return nil
		}); err != nil {
			return err
		}
		for i, l := range n.Children {
			child, err := src.Child(cmd.Context(), l)
			if err != nil {
				return err
			}
			if child == nil {
				continue
			}
			if err := w.repo.SetLink(cmd.Context(), added[i], child); err != nil {
				return err
			}
		}
	}
	return nil
}

// shortKeyOf abbreviates a key given on the command line.
func shortKeyOf(id string) string {
	c, err := dag.ParseKey(id)
	if err != nil {
		return id
	}
	return dag.ShortKey(c)
}
