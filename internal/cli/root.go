// Package cli holds the clinic-api cobra commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kenko/clinic-api/config"
	"github.com/kenko/clinic-api/internal/app"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic-api",
		Short: "Appointment scheduling API for clinics",
		Long: `clinic-api books appointments against doctors' schedules, drives them through
their lifecycle and relays every change to Redis through a transactional outbox.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: search ./config.yaml, ./config/config.yaml)")

	cmd.AddCommand(
		NewServeCommand(),
		NewWorkerCommand(),
		NewMigrateCommand(),
		NewEventsCommand(),
	)
	return cmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	return config.LoadConfig(path)
}

// bootstrap loads the config and opens the application's stores.
func bootstrap(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.NewLogger(cfg.Log))
}
