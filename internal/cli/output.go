package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/systemshift/memex-vcs/internal/dag"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	data, err := dag.JSON().MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// withWorkspace runs fn against the opened repository and closes it.
func withWorkspace(cmd *cobra.Command, opts *RootOptions, fn func(w *workspace) error) (err error) {
	w, err := openRepository(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, w.close()) }()
	return fn(w)
}
