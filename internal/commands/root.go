package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/sparkq/internal/app"
	"github.com/dotcommander/sparkq/internal/output"
)

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	root := &cobra.Command{
		Use:           "sparkq",
		Short:         "Local task dispatch: durable queues, atomic claims, one runner per queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.EnsureConfigDir(); err != nil {
				return err
			}

			// Wire --db-path and --config into app-level resolution.
			if dbPath, err := cmd.Flags().GetString("db-path"); err == nil && dbPath != "" {
				app.SetDBPathOverride(dbPath)
			}
			if cfgPath, err := cmd.Flags().GetString("config"); err == nil && cfgPath != "" {
				app.SetConfigPathOverride(cfgPath)
			}

			return nil
		},
	}

	root.PersistentFlags().String("db-path", "", "Override database path")
	root.PersistentFlags().String("config", "", "Override config file path")
	root.Flags().BoolP("version", "v", false, "version for sparkq")

	root.AddCommand(NewServeCmd(version))
	root.AddCommand(NewRunnerCmd())
	root.AddCommand(NewSessionCmd())
	root.AddCommand(NewQueueCmd())
	root.AddCommand(NewTaskCmd())
	root.AddCommand(NewStatusCmd())

	err := root.Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}
