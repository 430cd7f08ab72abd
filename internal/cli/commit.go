package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/schema"
)

// CommitOptions holds the edits applied to the root object before committing.
type CommitOptions struct {
	Message string
	Name    string
	Attrs   []string // key=value
	Blobs   []string // files attached as Blob children
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitOptions{}
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Edit the root object and commit it",
		Long: `Apply the given edits to the root object of the workspace and commit
it on the checked out branch. Without edits the root is committed unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				return runCommit(cmd, rootOpts, w, opts)
			})
		},
	}
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "commit comment")
	cmd.Flags().StringVar(&opts.Name, "name", "", "set the root name")
	cmd.Flags().StringArrayVar(&opts.Attrs, "attr", nil, "set a root attribute (key=value)")
	cmd.Flags().StringArrayVar(&opts.Blobs, "blob", nil, "attach a file as a Blob child of the root")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func runCommit(cmd *cobra.Command, rootOpts *RootOptions, w *workspace, opts *CommitOptions) error {
	ctx := cmd.Context()
	attrs := make(map[string]string, len(opts.Attrs))
	for _, kv := range opts.Attrs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return errors.ErrInvalidArgument.Wrap(fmt.Errorf("attribute %q is not key=value", kv))
		}
		attrs[k] = v
	}
	if err := editRoot(ctx, rootOpts.fs, w, opts.Name, attrs, opts.Blobs); err != nil {
		return err
	}

	key, err := w.repo.Commit(ctx, opts.Message)
	if err != nil {
		return err
	}
	if err := w.save(ctx, "commit: "+opts.Message, key); err != nil {
		return err
	}
	if rootOpts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]string{"branch": w.branchName(), "commit": key.String()})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", w.branchName(), key, opts.Message)
	return nil
}

func editRoot(ctx context.Context, fsys afero.Fs, w *workspace, name string, attrs map[string]string, blobs []string) error {
	root := w.repo.Root()
	if root == nil {
		return errors.ErrInvalidState.Wrap(fmt.Errorf("nothing checked out"))
	}
	if name == "" && len(attrs) == 0 && len(blobs) == 0 {
		return nil
	}
	if _, ok := root.Record().(*schema.Node); !ok {
		return errors.ErrInvalidState.Wrap(fmt.Errorf("root is a %s, not a Node", w.repo.Registry().Name(root.Type())))
	}

	if name != "" || len(attrs) > 0 {
		if err := root.Update(func(rec schema.Record) error {
			n := rec.(*schema.Node)
			if name != "" {
				n.Name = name
			}
			for k, v := range attrs {
				n.Set(k, v)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	for _, path := range blobs {
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		blob, err := w.repo.CreateObject(schema.BlobType)
		if err != nil {
			return err
		}
		if err := blob.Update(func(rec schema.Record) error {
			rec.(schema.Leaf).SetBytes(data)
			return nil
		}); err != nil {
			return err
		}
		var l *schema.Link
		if err := root.Update(func(rec schema.Record) error {
			l = rec.(*schema.Node).AddChild()
			return nil
		}); err != nil {
			return err
		}
		if err := w.repo.SetLink(ctx, l, blob); err != nil {
			return err
		}
	}
	return nil
}
