package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rutvikswami/Intellidocs/config"
	srv "github.com/rutvikswami/Intellidocs/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "intellidocs"}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (config/config.json)")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			if serveAddr == "" {
				serveAddr = os.Getenv("INTELLIDOCS_HTTP_ADDR")
			}
			return srv.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")

	var migDir string
	var direction string
	var steps int
	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			dsn := os.Getenv("DATABASE_URL")
			if dsn == "" {
				dsn = cfg.Storage.Postgres.DSN()
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrateCmd.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrateCmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrateCmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	root.AddCommand(serve, migrateCmd, newIngestCmd(&configPath))
	_ = root.Execute()
}
