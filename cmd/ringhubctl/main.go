package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aman-churiwal/ringhub-gateway/internal/app"
	"github.com/aman-churiwal/ringhub-gateway/internal/config"
	"github.com/aman-churiwal/ringhub-gateway/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
	logLevel   string

	ringhub *app.App
)

// openApp is swapped out in tests.
var openApp = func(cfg *config.Config, log *slog.Logger) (*app.App, error) {
	return app.Build(cfg, log)
}

var rootCmd = &cobra.Command{
	Use:           "ringhubctl <command>",
	Short:         "Operator CLI for the ring hub gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		a, err := openApp(cfg, logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Server.Environment))
		if err != nil {
			return err
		}
		ringhub = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if ringhub != nil {
			ringhub.Close()
			ringhub = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("RINGHUB_CONFIG"), "JSON or TOML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	rootCmd.AddGroup(
		&cobra.Group{ID: "actors", Title: "Actor Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.AddCommand(cooldownCmd, clearCmd, flaggedCmd, showCmd, checkCmd)
	rootCmd.AddCommand(migrateCmd, createAdminCmd, pruneCmd)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
