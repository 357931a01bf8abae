package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

// StatusResult is the status command's output payload.
type StatusResult struct {
	Pending      int           `json:"pending"`
	Completed    int           `json:"completed"`
	Failed       int           `json:"failed"`
	LastSyncTime string        `json:"lastSyncTime,omitempty"`
	ByEntity     []EntityCount `json:"byEntity,omitempty"`
}

// EntityCount is the pending count for one entity type.
type EntityCount struct {
	Entity string `json:"entity"`
	Count  int    `json:"count"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counters",
		Long: `Show the pending queue size and per-entity breakdown.

Completed/failed counters are session state in the library; from the CLI
they reflect only the current invocation and are usually zero.

Examples:
  outbox status
  outbox status --config outbox.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	q, closer, err := openQueue(opts)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	stats := q.Stats()
	result := StatusResult{
		Pending:   stats.TotalPending,
		Completed: stats.TotalCompleted,
		Failed:    stats.TotalFailed,
	}
	if stats.LastSyncTime != nil {
		result.LastSyncTime = stats.LastSyncTime.Format(time.RFC3339)
	}
	for entity, items := range q.EntityIndex() {
		result.ByEntity = append(result.ByEntity, EntityCount{Entity: entity, Count: len(items)})
	}
	sortEntityCounts(result.ByEntity)

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Pending: %d\n", result.Pending)
	for _, ec := range result.ByEntity {
		fmt.Fprintf(w, "  %-16s %d\n", ec.Entity, ec.Count)
	}
	return nil
}

func sortEntityCounts(counts []EntityCount) {
	sort.Slice(counts, func(i, j int) bool { return counts[i].Entity < counts[j].Entity })
}
