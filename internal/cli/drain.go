package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verihire/outbox/internal/engine"
	"github.com/verihire/outbox/internal/queue"
)

// DrainOptions holds flags for the drain command.
type DrainOptions struct {
	*RootOptions
	Force bool
}

// DrainResult is the drain command's output payload.
type DrainResult struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DrainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Push queued mutations to their endpoints",
		Long: `Run one drain cycle: dispatch every queued mutation, in priority
order, to the endpoint its action maps to in the config's action table.

Failed items stay queued with their attempt counters bumped; items past
the retry budget are dropped. Exits 1 when items remain queued.

Examples:
  outbox drain --config outbox.cue
  outbox drain --config outbox.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "drain even if another cycle appears to be running")
	return cmd
}

func runDrain(opts *DrainOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if len(cfg.Actions) == 0 {
		return WrapExitError(ExitCommandError, "config has no action table", nil)
	}

	st, closer, err := openSlot(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	// The CLI runs on demand; invoking drain asserts connectivity. A dead
	// network shows up as per-item failures, not as a refused cycle.
	q := queue.New(st)
	eng := engine.New(q, reg, engine.NewSignalMonitor(true),
		engine.WithMaxAttempts(cfg.MaxAttempts),
		engine.WithExecutorTimeout(cfg.ExecutorTimeout),
	)
	defer eng.Close()

	ctx := context.Background()
	if opts.Force {
		err = eng.ForceDrain(ctx)
	} else {
		err = eng.Drain(ctx)
	}
	if err != nil && !errors.Is(err, engine.ErrItemsRemaining) {
		return WrapExitError(ExitCommandError, "drain cycle", err)
	}

	stats := eng.Stats()
	result := DrainResult{
		Completed: stats.TotalCompleted,
		Failed:    stats.TotalFailed,
		Remaining: stats.TotalPending,
	}

	if opts.Format == "json" {
		if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
			return werr
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Completed: %d  Failed: %d  Remaining: %d\n",
			result.Completed, result.Failed, result.Remaining)
	}

	if result.Remaining > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d items remain queued", result.Remaining)}
	}
	return nil
}
