package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verihire/outbox/internal/queue"
	"github.com/verihire/outbox/internal/registry"
)

// ItemsOptions holds flags for the items command.
type ItemsOptions struct {
	*RootOptions
	Entity string
}

// ItemView is the list entry for one queued item.
type ItemView struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// NewItemsCommand creates the items command.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List queued mutations",
		Long: `List queued mutations in the order the next drain will process them:
high before normal before low, oldest first within a priority.

Examples:
  outbox items
  outbox items --entity application
  outbox items --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItems(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entity, "entity", "", "filter to one entity type")
	return cmd
}

func runItems(opts *ItemsOptions, cmd *cobra.Command) error {
	q, closer, err := openQueue(opts.RootOptions)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	var items []queue.Item
	if opts.Entity != "" {
		items = q.PendingItems(opts.Entity)
	} else {
		items = q.Items()
	}

	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		views = append(views, ItemView{
			ID:        it.ID,
			Key:       registry.Key(it.EntityType, it.Action),
			Priority:  string(it.Priority),
			Status:    string(it.Status),
			Attempts:  it.Attempts,
			Timestamp: it.Timestamp.Format(time.RFC3339),
			Error:     it.Error,
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), views)
	}

	w := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(w, "Queue is empty.")
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(w, "%s  %-24s %-7s %-10s attempts=%d\n", v.ID, v.Key, v.Priority, v.Status, v.Attempts)
		if v.Error != "" {
			fmt.Fprintf(w, "    last error: %s\n", v.Error)
		}
	}
	return nil
}
