package main

import (
	"fmt"
	"os"

	"db-premigrate/internal/app"
	"db-premigrate/internal/config"

	configLoader "github.com/andiksetyawan/config"
	"github.com/spf13/cobra"
)

var envPath string

var rootCmd = &cobra.Command{
	Use:           "premigrate",
	Short:         "Repair an Odoo database before the OpenUpgrade 16.0 base migration",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "path to the .env file")
	rootCmd.AddCommand(runCmd, checkCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	cfg := &config.AppConfig{}
	loader := configLoader.New(
		configLoader.WithEnvPath(envPath),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setup loads configuration, lets overrides adjust it and connects.
func setup(overrides func(cfg *config.AppConfig)) (*app.Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides(cfg)
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)

	db, err := config.InitDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	application, err := app.NewApplication(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return application, nil
}
