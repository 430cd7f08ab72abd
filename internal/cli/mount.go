package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	memexfuse "github.com/systemshift/memex-vcs/internal/fuse"
)

// NewMountCommand creates the mount command.
func NewMountCommand(rootOpts *RootOptions) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "mount <mountpoint>",
		Short: "Mount a read-only view of the repository",
		Long: `Mount the repository with FUSE until interrupted:

  HEAD                        key of the saved branch table
  branches/<name>/heads       head commit keys
  branches/<name>/log/<n>     commit n of the history, as JSON
  objects/<key>               raw value of a stored element`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, rootOpts, func(w *workspace) error {
				mountpoint := args[0]
				if err := rootOpts.fs.MkdirAll(mountpoint, 0755); err != nil {
					return fmt.Errorf("create mountpoint: %w", err)
				}
				view := memexfuse.NewView(w.repo, w.log)
				server, err := memexfuse.MountFS(mountpoint, view, debug)
				if err != nil {
					return fmt.Errorf("mount: %w", err)
				}
				w.log.Info("mounted", zap.String("mountpoint", mountpoint))

				// Unmount when the command context ends (interrupt or terminate)
				done := make(chan struct{})
				go func() {
					select {
					case <-cmd.Context().Done():
						w.log.Info("shutting down")
						if err := server.Unmount(); err != nil {
							w.log.Warn("unmount failed", zap.Error(err))
						}
					case <-done:
					}
				}()
				fmt.Fprintf(cmd.OutOrStdout(), "Mounted at %s\n", mountpoint)
				server.Wait()
				close(done)
				w.log.Info("stopped")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log FUSE requests")
	return cmd
}
