package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/output"
)

// NewSessionCmd creates the session command group.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions (named work periods grouping queues)",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionEndCmd())
	cmd.AddCommand(newSessionDeleteCmd())

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			desc, _ := cmd.Flags().GetString("desc")
			if name == "" {
				return cmdErr(errors.New("--name is required"))
			}

			var session *models.Session
			if err := withCore(func(c *core.Core) error {
				s, err := c.CreateSession(name, desc)
				if err != nil {
					return err
				}
				session = s
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(session)
		},
	}

	cmd.Flags().String("name", "", "Session name (required)")
	cmd.Flags().String("desc", "", "Session description")
	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sessions []*models.Session
			if err := withCore(func(c *core.Core) error {
				var err error
				sessions, err = c.ListSessions()
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Sessions []*models.Session `json:"sessions"`
				Count    int               `json:"count"`
			}
			return output.PrintSuccess(resp{Sessions: sessions, Count: len(sessions)})
		},
	}
}

func newSessionGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var session *models.Session
			if err := withCore(func(c *core.Core) error {
				var err error
				session, err = c.GetSession(args[0])
				return err
			}); err != nil {
				return err
			}
			return output.PrintSuccess(session)
		},
	}
	return cmd
}

func newSessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <session-id>",
		Short: "End a session (queues stop accepting new queues)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var session *models.Session
			if err := withCore(func(c *core.Core) error {
				s, err := c.UpdateSession(args[0], core.SessionPatch{End: true})
				if err != nil {
					return err
				}
				session = s
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(session)
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session; --cascade removes its queues and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cascade, _ := cmd.Flags().GetBool("cascade")

			if err := withCore(func(c *core.Core) error {
				return c.DeleteSession(args[0], cascade)
			}); err != nil {
				return err
			}

			type resp struct {
				Deleted string `json:"deleted"`
			}
			return output.PrintSuccess(resp{Deleted: args[0]})
		},
	}

	cmd.Flags().Bool("cascade", false, "Also delete the session's queues and their tasks")
	return cmd
}
