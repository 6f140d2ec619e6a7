package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beigebox/beigebox/internal/config"
)

// configPath is shared by every subcommand's --config flag.
var configPath string

func buildServeCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the BeigeBox proxy server",
		Long: `Start the BeigeBox proxy server.

The server will:
1. Load configuration from the specified file (or ./beigebox.yaml)
2. Open the durable message log (SQLite or Postgres)
3. Construct the backend dispatcher from the configured provider list
4. Construct the hybrid routing core (session cache, centroid classifier, arbitrator)
5. Mount the hook and tool pipelines
6. Serve the OpenAI-compatible HTTP surface

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "beigebox.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func buildStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Load configuration and report how the proxy would wire up, without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Printf("config: %s\n", configPath)
			fmt.Printf("listen_addr: %s\n", cfg.Server.ListenAddr)
			fmt.Printf("backends: %d configured\n", len(cfg.Backends))
			fmt.Printf("storage driver: %s\n", cfg.Storage.Driver)
			fmt.Printf("default model: %s\n", cfg.DefaultModel)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "beigebox.yaml", "Path to YAML configuration file")
	return cmd
}

func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Ensure the durable message log schema exists",
		Long:  `SQLite and Postgres both create their schema on first open; this command just forces that open so an operator can run it ahead of the first request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := buildStore(cfg.Storage)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()
			fmt.Println("schema ready")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "beigebox.yaml", "Path to YAML configuration file")
	return cmd
}
