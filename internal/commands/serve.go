package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/sparkq/internal/app"
	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/server"
	"github.com/dotcommander/sparkq/internal/supervisor"
	"github.com/dotcommander/sparkq/internal/tools"
)

// NewServeCmd creates the serve command: control server + supervisor.
func NewServeCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the local control server and supervisor loops",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.LoadSettings()
			if err != nil {
				return cmdErr(err)
			}

			host, _ := cmd.Flags().GetString("host")
			port, _ := cmd.Flags().GetInt("port")
			if host == "" {
				host = settings.Server.Host
			}
			if port == 0 {
				port = settings.Server.Port
			}

			db, closeDB, err := openDB()
			if err != nil {
				return cmdErr(err)
			}
			defer closeDB()

			dataDir, err := app.DataDir()
			if err != nil {
				return cmdErr(err)
			}

			c := core.New(db, nil, tools.NewResolver(settings))

			wd, _ := os.Getwd()
			project, err := c.EnsureProject(filepath.Base(wd), wd)
			if err != nil {
				return cmdErr(err)
			}
			slog.Info("project ready", "project_id", project.ID, "name", project.Name)

			sup := supervisor.New(c, slog.Default(), supervisor.Options{
				SweepInterval: settings.AutoFailInterval(),
				Retention:     settings.Retention(),
			})
			sup.Start()
			defer sup.Stop()

			srv := server.New(c, slog.Default(), server.Options{
				Host:    host,
				Port:    port,
				DataDir: dataDir,
				Version: version,
			})

			// Cooperative shutdown on SIGINT/SIGTERM.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				slog.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					slog.Warn("shutdown error", "error", err)
				}
			}()

			if err := srv.Start(); err != nil {
				return cmdErr(err)
			}
			return nil
		},
	}

	cmd.Flags().String("host", "", "Bind host (default from config)")
	cmd.Flags().Int("port", 0, "Bind port (default from config)")
	return cmd
}
