package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/output"
	"github.com/dotcommander/sparkq/internal/store"
)

// NewQueueCmd creates the queue command group.
func NewQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage queues (FIFO work lanes within a session)",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(newQueueCreateCmd())
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueGetCmd())
	cmd.AddCommand(newQueueUpdateCmd())
	cmd.AddCommand(newQueueArchiveCmd())
	cmd.AddCommand(newQueueUnarchiveCmd())
	cmd.AddCommand(newQueueDeleteCmd())

	return cmd
}

func newQueueCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a queue under a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, _ := cmd.Flags().GetString("session-id")
			name, _ := cmd.Flags().GetString("name")
			instructions, _ := cmd.Flags().GetString("instructions")
			if sessionID == "" {
				return cmdErr(errors.New("--session-id is required"))
			}
			if name == "" {
				return cmdErr(errors.New("--name is required"))
			}

			var queue *models.Queue
			if err := withCore(func(c *core.Core) error {
				q, err := c.CreateQueue(sessionID, name, instructions)
				if err != nil {
					return err
				}
				queue = q
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(queue)
		},
	}

	cmd.Flags().String("session-id", "", "Owning session ID (required)")
	cmd.Flags().String("name", "", "Queue name, globally unique (required)")
	cmd.Flags().String("instructions", "", "Instructions shown to runners on startup")
	return cmd
}

func newQueueListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queues, optionally for one session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, _ := cmd.Flags().GetString("session-id")
			withQueued, _ := cmd.Flags().GetBool("with-queued")

			if withQueued {
				var out []*models.QueueQueuedCount
				if err := withCore(func(c *core.Core) error {
					var err error
					out, err = c.QueuesWithQueuedTasks()
					return err
				}); err != nil {
					return err
				}
				type resp struct {
					Queues []*models.QueueQueuedCount `json:"queues"`
					Count  int                        `json:"count"`
				}
				return output.PrintSuccess(resp{Queues: out, Count: len(out)})
			}

			var queues []*models.Queue
			if err := withCore(func(c *core.Core) error {
				var err error
				queues, err = c.ListQueues(sessionID)
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Queues []*models.Queue `json:"queues"`
				Count  int             `json:"count"`
			}
			return output.PrintSuccess(resp{Queues: queues, Count: len(queues)})
		},
	}

	cmd.Flags().String("session-id", "", "Filter by session")
	cmd.Flags().Bool("with-queued", false, "Only queues holding queued tasks, with counts")
	return cmd
}

func newQueueGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <queue-id-or-name>",
		Short: "Show one queue (by id, or by name with --by-name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			byName, _ := cmd.Flags().GetBool("by-name")

			var queue *models.Queue
			if err := withCore(func(c *core.Core) error {
				var err error
				if byName {
					queue, err = c.GetQueueByName(args[0])
				} else {
					queue, err = c.GetQueue(args[0])
				}
				return err
			}); err != nil {
				return err
			}
			return output.PrintSuccess(queue)
		},
	}

	cmd.Flags().Bool("by-name", false, "Look the queue up by name instead of id")
	return cmd
}

func newQueueUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <queue-id>",
		Short: "Update queue name, instructions, status, or agent defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd store.QueueUpdate
			if cmd.Flags().Changed("name") {
				v, _ := cmd.Flags().GetString("name")
				upd.Name = &v
			}
			if cmd.Flags().Changed("instructions") {
				v, _ := cmd.Flags().GetString("instructions")
				upd.Instructions = &v
			}
			if cmd.Flags().Changed("status") {
				v, _ := cmd.Flags().GetString("status")
				status := models.QueueStatus(v)
				upd.Status = &status
			}
			if cmd.Flags().Changed("agent-role") {
				v, _ := cmd.Flags().GetString("agent-role")
				upd.DefaultAgentRoleKey = &v
			}
			if cmd.Flags().Changed("codex-session") {
				v, _ := cmd.Flags().GetString("codex-session")
				upd.CodexSessionID = &v
			}
			if cmd.Flags().Changed("model-profile") {
				v, _ := cmd.Flags().GetString("model-profile")
				upd.ModelProfile = &v
			}

			var queue *models.Queue
			if err := withCore(func(c *core.Core) error {
				q, err := c.UpdateQueue(args[0], upd)
				if err != nil {
					return err
				}
				queue = q
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(queue)
		},
	}

	cmd.Flags().String("name", "", "New queue name")
	cmd.Flags().String("instructions", "", "New runner instructions")
	cmd.Flags().String("status", "", "New status (active|idle|planned|ended|archived)")
	cmd.Flags().String("agent-role", "", "Default agent role key")
	cmd.Flags().String("codex-session", "", "Attached codex session id")
	cmd.Flags().String("model-profile", "", "Model profile hint")
	return cmd
}

func newQueueArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <queue-id>",
		Short: "Archive a queue; it stops accepting tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var queue *models.Queue
			if err := withCore(func(c *core.Core) error {
				q, err := c.ArchiveQueue(args[0])
				if err != nil {
					return err
				}
				queue = q
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(queue)
		},
	}
}

func newQueueUnarchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unarchive <queue-id>",
		Short: "Reverse an archive; the queue accepts tasks again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var queue *models.Queue
			if err := withCore(func(c *core.Core) error {
				q, err := c.UnarchiveQueue(args[0])
				if err != nil {
					return err
				}
				queue = q
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(queue)
		},
	}
}

func newQueueDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <queue-id>",
		Short: "Delete a queue; --cascade removes its live tasks too",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cascade, _ := cmd.Flags().GetBool("cascade")

			if err := withCore(func(c *core.Core) error {
				return c.DeleteQueue(args[0], cascade)
			}); err != nil {
				return err
			}

			type resp struct {
				Deleted string `json:"deleted"`
			}
			return output.PrintSuccess(resp{Deleted: args[0]})
		},
	}

	cmd.Flags().Bool("cascade", false, "Also delete queued and running tasks")
	return cmd
}
