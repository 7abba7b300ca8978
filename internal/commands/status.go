package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/output"
)

// NewStatusCmd creates the status command: task counts by status.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task counts by status, optionally for one queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID, _ := cmd.Flags().GetString("queue-id")

			var counts models.TaskStatusCounts
			var withQueued []*models.QueueQueuedCount
			if err := withCore(func(c *core.Core) error {
				var err error
				if counts, err = c.CountByStatus(queueID); err != nil {
					return err
				}
				if queueID == "" {
					withQueued, err = c.QueuesWithQueuedTasks()
				}
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Counts     models.TaskStatusCounts    `json:"counts"`
				Total      int                        `json:"total"`
				WithQueued []*models.QueueQueuedCount `json:"queues_with_queued,omitempty"`
			}
			return output.PrintSuccess(resp{Counts: counts, Total: counts.Total(), WithQueued: withQueued})
		},
	}

	cmd.Flags().String("queue-id", "", "Scope counts to one queue")
	return cmd
}
