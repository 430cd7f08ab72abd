// Package cli implements the memex-vcs command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/systemshift/memex-vcs/internal/errors"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation refused or failed
	ExitCommandError = 2 // Bad arguments or flags
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Dir      string // working directory holding .mvcs/
	Driver   string // overrides store.driver
	LogLevel string // overrides log.level
	Verbose  bool
	Format   string // "json" | "text"

	fs afero.Fs
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the memex-vcs CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(afero.NewOsFs())
}

func newRootCommand(fsys afero.Fs) *cobra.Command {
	opts := &RootOptions{fs: fsys}

	cmd := &cobra.Command{
		Use:   "memex-vcs",
		Short: "memex-vcs - versioned object repository",
		Long: `A versioned repository of typed objects stored by content key.

Objects are committed into a commit graph organized in branches. Any commit
can be checked out again, by key or by date.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return errors.ErrInvalidArgument.Wrap(fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.Dir, "dir", "C", ".", "working directory")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "content store driver (memory|fs|sqlite|badger), overrides the config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error|none), overrides the config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewCommitCommand(opts))
	cmd.AddCommand(NewBranchCommand(opts))
	cmd.AddCommand(NewBranchesCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewReflogCommand(opts))
	cmd.AddCommand(NewMountCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "memex-vcs: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

func exitCode(err error) int {
	if errors.Is(err, errors.ErrInvalidArgument) {
		return ExitCommandError
	}
	return ExitFailure
}
