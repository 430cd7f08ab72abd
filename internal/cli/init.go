package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/systemshift/memex-vcs/internal/config"
	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/repo"
	"github.com/systemshift/memex-vcs/internal/schema"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a repository in the working directory",
		Long: `Create .mvcs/ with a settings file, a content store and a new repository
whose root object is committed on the default branch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, rootOpts, branch)
		},
	}
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "nickname of the first branch (default from config)")
	return cmd
}

func runInit(cmd *cobra.Command, opts *RootOptions, branch string) (err error) {
	ctx := cmd.Context()
	path := config.Path(opts.Dir)
	exists, err := afero.Exists(opts.fs, path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if branch != "" {
		cfg.Repository.DefaultBranch = branch
	}
	if !exists {
		if err := config.Save(opts.fs, path, cfg); err != nil {
			return err
		}
	}

	w, err := openWorkspace(opts, cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, w.close()) }()
	if w.refs.Has(refHead) {
		return errors.ErrInvalidState.Wrap(fmt.Errorf("%s is already a repository", opts.Dir))
	}

	r, err := repo.New(w.store, w.repoOptions()...)
	if err != nil {
		return err
	}
	w.repo = r
	root, err := r.CreateObject(schema.NodeType)
	if err != nil {
		return err
	}
	name := opts.Dir
	if abs, err := filepath.Abs(opts.Dir); err == nil {
		name = filepath.Base(abs)
	}
	if err := root.Update(func(rec schema.Record) error {
		rec.(*schema.Node).Name = name
		return nil
	}); err != nil {
		return err
	}
	key, err := r.Commit(ctx, "init")
	if err != nil {
		return err
	}
	if err := w.save(ctx, "init", key); err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"repository": r.RepositoryKey(),
			"branch":     w.branchName(),
			"commit":     key.String(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized repository %s on branch %s\n", r.RepositoryKey(), w.branchName())
	return nil
}
