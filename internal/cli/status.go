package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/repo"
	"github.com/systemshift/memex-vcs/internal/schema"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the repository summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				if rootOpts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"repository": w.repo.RepositoryKey(),
						"status":     w.repo.Status().String(),
						"branch":     w.branchName(),
						"detached":   w.repo.Detached(),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), w.repo.String())
				return nil
			})
		},
	}
}

// NewBranchesCommand creates the branches command.
func NewBranchesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "branches",
		Short: "List branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				type branchInfo struct {
					Name    string   `json:"name"`
					Key     string   `json:"key"`
					Current bool     `json:"current"`
					Heads   []string `json:"heads"`
				}
				var out []branchInfo
				for _, b := range w.repo.Branches() {
					info := branchInfo{Name: w.repo.NicknameOf(b.Key), Key: b.Key, Current: b.Key == w.branch}
					if info.Name == "" {
						info.Name = b.Key
					}
					for _, l := range b.CommitRefs {
						info.Heads = append(info.Heads, l.Key.String())
					}
					out = append(out, info)
				}
				if rootOpts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), out)
				}
				for _, b := range out {
					marker := " "
					if b.Current {
						marker = "*"
					}
					heads := "-"
					switch len(b.Heads) {
					case 0:
					case 1:
						heads = b.Heads[0]
					default:
						heads = fmt.Sprintf("%d heads (diverged)", len(b.Heads))
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\n", marker, b.Name, heads)
				}
				return nil
			})
		},
	}
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log [branch]",
		Short: "Show the history of a branch",
		Long: `Show, for each head of the branch, its history following Parent edges,
newest first. Without a branch the checked out branch is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				branch := w.branch
				if len(args) == 1 {
					branch = args[0]
				}
				histories, err := w.repo.LogCommits(cmd.Context(), branch)
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), logJSON(histories))
				}
				for i, history := range histories {
					if len(histories) > 1 {
						fmt.Fprintf(cmd.OutOrStdout(), "== head %d ==\n", i)
					}
					for _, c := range history {
						fmt.Fprintf(cmd.OutOrStdout(), "commit %s\n", c.Key)
						for _, p := range c.Parents {
							if p.Relation == schema.MergedFrom {
								fmt.Fprintf(cmd.OutOrStdout(), "Merge: %s\n", dag.ShortKey(p.Key))
							}
						}
						fmt.Fprintf(cmd.OutOrStdout(), "Date:   %s\n\n    %s\n\n", c.Date.Format(time.RFC3339), c.Comment)
					}
				}
				return nil
			})
		},
	}
}

type commitJSON struct {
	Key     string            `json:"key"`
	Date    time.Time         `json:"date"`
	Comment string            `json:"comment"`
	Root    string            `json:"root,omitempty"`
	Parents map[string]string `json:"parents,omitempty"`
}

func logJSON(histories [][]repo.CommitInfo) [][]commitJSON {
	out := make([][]commitJSON, len(histories))
	for i, history := range histories {
		for _, c := range history {
			cj := commitJSON{Key: c.Key.String(), Date: c.Date, Comment: c.Comment}
			if c.Root.Defined() {
				cj.Root = c.Root.String()
			}
			for _, p := range c.Parents {
				if cj.Parents == nil {
					cj.Parents = make(map[string]string)
				}
				cj.Parents[p.Key.String()] = p.Relation.String()
			}
			out[i] = append(out[i], cj)
		}
	}
	return out
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print a stored element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := dag.ParseKey(args[0])
			if err != nil {
				return err
			}
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				e, err := w.store.Load(cmd.Context(), key)
				if err != nil {
					return err
				}
				children := make([]string, len(e.ChildKeys))
				for i, c := range e.ChildKeys {
					children[i] = c.String()
				}
				typeName := w.repo.Registry().Name(e.Type)
				if rootOpts.Format == "json" {
					out := map[string]interface{}{
						"key":      e.Key.String(),
						"type":     typeName,
						"leaf":     e.IsLeaf,
						"children": children,
					}
					if !e.IsLeaf {
						out["value"] = string(e.Value)
					}
					return printJSON(cmd.OutOrStdout(), out)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "key      %s\n", e.Key)
				fmt.Fprintf(cmd.OutOrStdout(), "type     %s (%s)\n", typeName, e.Type)
				fmt.Fprintf(cmd.OutOrStdout(), "leaf     %t\n", e.IsLeaf)
				for _, c := range children {
					fmt.Fprintf(cmd.OutOrStdout(), "child    %s\n", c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", e.Value)
				return nil
			})
		},
	}
}

// NewReflogCommand creates the reflog command.
func NewReflogCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reflog",
		Short: "Show recent updates of the saved repository head",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				entries := w.reflog.Recent(limit)
				if rootOpts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				for _, e := range entries {
					commit := "-"
					if e.Commit != "" {
						commit = e.Commit
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %s  %s\n",
						e.Time.Format(time.RFC3339), e.Branch, commit, e.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries (0 for all)")
	return cmd
}
