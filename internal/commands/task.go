package commands

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/output"
	"github.com/dotcommander/sparkq/internal/store"
)

// NewTaskCmd creates the task command group.
func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Enqueue, claim, and close tasks. Valid statuses: queued, running, succeeded, failed",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(newTaskEnqueueCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskGetCmd())
	cmd.AddCommand(newTaskEventsCmd())
	cmd.AddCommand(newTaskPeekCmd())
	cmd.AddCommand(newTaskClaimCmd())
	cmd.AddCommand(newTaskCompleteCmd())
	cmd.AddCommand(newTaskFailCmd())
	cmd.AddCommand(newTaskRequeueCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskDeleteCmd())

	return cmd
}

func newTaskEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a task on a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID, _ := cmd.Flags().GetString("queue-id")
			toolName, _ := cmd.Flags().GetString("tool")
			payload, _ := cmd.Flags().GetString("payload")
			timeout, _ := cmd.Flags().GetInt("timeout")
			agentRole, _ := cmd.Flags().GetString("agent-role")

			if queueID == "" {
				return cmdErr(errors.New("--queue-id is required"))
			}
			if toolName == "" {
				return cmdErr(errors.New("--tool is required"))
			}

			var task *models.Task
			if err := withCore(func(c *core.Core) error {
				t, err := c.Enqueue(core.EnqueueParams{
					QueueID:        queueID,
					ToolName:       toolName,
					Payload:        json.RawMessage(payload),
					TimeoutSeconds: timeout,
					AgentRoleKey:   agentRole,
				})
				if err != nil {
					return err
				}
				task = t
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(task)
		},
	}

	cmd.Flags().String("queue-id", "", "Target queue ID (required)")
	cmd.Flags().String("tool", "", "Tool name from the registry (required)")
	cmd.Flags().String("payload", "", "Opaque JSON payload")
	cmd.Flags().Int("timeout", 0, "Timeout override in seconds (0 = resolve from tool/class)")
	cmd.Flags().String("agent-role", "", "Agent role key")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID, _ := cmd.Flags().GetString("queue-id")
			status, _ := cmd.Flags().GetString("status")
			stale, _ := cmd.Flags().GetBool("stale")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			var tasks []*models.Task
			var total int
			if err := withCore(func(c *core.Core) error {
				var err error
				tasks, total, err = c.ListTasks(store.TaskFilters{
					QueueID:   queueID,
					Status:    models.TaskStatus(status),
					StaleOnly: stale,
					Limit:     limit,
					Offset:    offset,
				})
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Tasks []*models.Task `json:"tasks"`
				Total int            `json:"total"`
			}
			return output.PrintSuccess(resp{Tasks: tasks, Total: total})
		},
	}

	cmd.Flags().String("queue-id", "", "Filter by queue")
	cmd.Flags().String("status", "", "Filter by status (queued|running|succeeded|failed)")
	cmd.Flags().Bool("stale", false, "Only running tasks past their timeout")
	cmd.Flags().Int("limit", 0, "Page size (default 50)")
	cmd.Flags().Int("offset", 0, "Page offset")
	return cmd
}

func newTaskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var task *models.Task
			if err := withCore(func(c *core.Core) error {
				var err error
				task, err = c.GetTask(args[0])
				return err
			}); err != nil {
				return err
			}
			return output.PrintSuccess(task)
		},
	}
}

func newTaskEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <task-id>",
		Short: "Show a task's audit trail, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			var events []*models.TaskEvent
			if err := withCore(func(c *core.Core) error {
				var err error
				events, err = c.TaskEvents(args[0], limit)
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Events []*models.TaskEvent `json:"events"`
				Count  int                 `json:"count"`
			}
			return output.PrintSuccess(resp{Events: events, Count: len(events)})
		},
	}

	cmd.Flags().Int("limit", 0, "Max events (default 100)")
	return cmd
}

func newTaskPeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peek <queue-id>",
		Short: "Show the queue head without claiming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var task *models.Task
			if err := withCore(func(c *core.Core) error {
				var err error
				task, err = c.Peek(args[0])
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Task  *models.Task `json:"task,omitempty"`
				Empty bool         `json:"empty"`
			}
			return output.PrintSuccess(resp{Task: task, Empty: task == nil})
		},
	}
}

func newTaskClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <task-id>",
		Short: "Atomically claim a queued task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cmdErr(errors.New("task id is required"))
			}

			var desc *models.ClaimDescriptor
			if err := withCore(func(c *core.Core) error {
				d, err := c.Claim(args[0])
				if err != nil {
					return err
				}
				desc = d
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(desc)
		},
	}
}

func newTaskCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a running task succeeded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, _ := cmd.Flags().GetString("summary")
			data, _ := cmd.Flags().GetString("data")
			if summary == "" {
				return cmdErr(errors.New("--summary is required"))
			}

			var task *models.Task
			if err := withCore(func(c *core.Core) error {
				t, err := c.Complete(args[0], summary, json.RawMessage(data))
				if err != nil {
					return err
				}
				task = t
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(task)
		},
	}

	cmd.Flags().String("summary", "", "Result summary (required, non-empty)")
	cmd.Flags().String("data", "", "Structured result data as JSON")
	return cmd
}

func newTaskFailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fail <task-id>",
		Short: "Mark a running task failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			if message == "" {
				return cmdErr(errors.New("--message is required"))
			}

			var task *models.Task
			if err := withCore(func(c *core.Core) error {
				t, err := c.Fail(args[0], message)
				if err != nil {
					return err
				}
				task = t
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(task)
		},
	}

	cmd.Flags().String("message", "", "Error message (required)")
	return cmd
}

func newTaskRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <task-id>",
		Short: "Clone a terminal task into a fresh queued task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var clone *models.Task
			if err := withCore(func(c *core.Core) error {
				t, err := c.Requeue(args[0])
				if err != nil {
					return err
				}
				clone = t
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(clone)
		},
	}
}

func newTaskUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Edit payload, timeout, or agent role on a queued task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd store.TaskUpdate
			if cmd.Flags().Changed("payload") {
				v, _ := cmd.Flags().GetString("payload")
				upd.Payload = json.RawMessage(v)
			}
			if cmd.Flags().Changed("timeout") {
				v, _ := cmd.Flags().GetInt("timeout")
				upd.TimeoutSeconds = &v
			}
			if cmd.Flags().Changed("agent-role") {
				v, _ := cmd.Flags().GetString("agent-role")
				upd.AgentRoleKey = &v
			}

			var task *models.Task
			if err := withCore(func(c *core.Core) error {
				t, err := c.UpdateTask(args[0], upd)
				if err != nil {
					return err
				}
				task = t
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(task)
		},
	}

	cmd.Flags().String("payload", "", "New JSON payload")
	cmd.Flags().Int("timeout", 0, "New timeout in seconds")
	cmd.Flags().String("agent-role", "", "New agent role key")
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task in any state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := withCore(func(c *core.Core) error {
				return c.DeleteTask(args[0])
			}); err != nil {
				return err
			}

			type resp struct {
				Deleted string `json:"deleted"`
			}
			return output.PrintSuccess(resp{Deleted: args[0]})
		},
	}
}
