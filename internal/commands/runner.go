package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dotcommander/sparkq/internal/app"
	"github.com/dotcommander/sparkq/internal/client"
	"github.com/dotcommander/sparkq/internal/runner"
)

// modeValue is a pflag.Value that rejects bad modes at parse time.
type modeValue runner.Mode

var _ pflag.Value = (*modeValue)(nil)

func (m *modeValue) String() string { return string(*m) }
func (m *modeValue) Type() string   { return "mode" }

func (m *modeValue) Set(s string) error {
	mode, err := runner.ParseMode(s)
	if err != nil {
		return err
	}
	*m = modeValue(mode)
	return nil
}

// NewRunnerCmd creates the runner command. The runner is an HTTP client
// of the control server; `sparkq serve` must be running.
func NewRunnerCmd() *cobra.Command {
	mode := modeValue(runner.ModeWatch)
	cmd := &cobra.Command{
		Use:           "runner <queue-name>",
		Short:         "Claim tasks from one queue (modes: once, drain, watch)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.LoadSettings()
			if err != nil {
				return cmdErr(err)
			}

			pollSeconds, _ := cmd.Flags().GetInt("poll-interval")
			poll := settings.PollIntervalDuration()
			if pollSeconds > 0 {
				poll = time.Duration(pollSeconds) * time.Second
			}

			api := client.New(settings.ServerURL())
			r, err := runner.New(api, runner.Options{
				QueueName:    args[0],
				Mode:         runner.Mode(mode),
				PollInterval: poll,
				Stdout:       os.Stdout,
				Logger:       slog.Default(),
			})
			if err != nil {
				return cmdErr(err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := r.Run(ctx); err != nil {
				if errors.Is(err, runner.ErrLockHeld) {
					slog.Error("queue already has a live runner", "error", err.Error())
					os.Exit(2)
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return cmdErr(err)
			}
			return nil
		},
	}

	cmd.Flags().Var(&mode, "mode", "Runner mode: once, drain, or watch")
	cmd.Flags().Int("poll-interval", 0, "Watch-mode poll interval in seconds (default from config)")
	return cmd
}
