package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ClearOptions holds flags for the clear command.
type ClearOptions struct {
	*RootOptions
	Entity        string
	All           bool
	ResetCounters bool
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClearOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queued mutations without sending them",
		Long: `Remove queued mutations from the slot without dispatching them.

Requires either --entity to clear one entity type or --all for the whole
queue. Cleared work is gone; there is no undo.

Examples:
  outbox clear --entity application
  outbox clear --all`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entity, "entity", "", "entity type to clear")
	cmd.Flags().BoolVar(&opts.All, "all", false, "clear the entire queue")
	cmd.Flags().BoolVar(&opts.ResetCounters, "reset-counters", false, "also reset cumulative counters (with --all)")
	return cmd
}

func runClear(opts *ClearOptions, cmd *cobra.Command) error {
	if opts.All == (opts.Entity != "") {
		return WrapExitError(ExitCommandError, "exactly one of --entity or --all is required", nil)
	}

	q, closer, err := openQueue(opts.RootOptions)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	before := q.Len()
	if opts.All {
		q.ClearAll(opts.ResetCounters)
	} else {
		q.ClearEntity(opts.Entity)
	}
	removed := before - q.Len()

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]int{"removed": removed})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items.\n", removed)
	return nil
}
