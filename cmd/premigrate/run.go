package main

import (
	"db-premigrate/internal/config"

	"github.com/spf13/cobra"
)

var (
	runModule    string
	runInstalled string
	runTarget    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pre-migration scripts in a single transaction",
	Long: `Runs every registered pre-migration script of the module whose version
is newer than the installed version and not newer than the target. Nothing is
repaired when no installed version is known (fresh install).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := setup(func(cfg *config.AppConfig) {
			if cmd.Flags().Changed("module") {
				cfg.Migration.Module = runModule
			}
			if cmd.Flags().Changed("installed") {
				cfg.Migration.InstalledVersion = runInstalled
			}
			if cmd.Flags().Changed("target") {
				cfg.Migration.TargetVersion = runTarget
			}
		})
		if err != nil {
			return err
		}
		defer application.Close()

		m := application.Config.Migration
		return application.Migrator.Run(cmd.Context(), m.Module, m.InstalledVersion, m.TargetVersion)
	},
}

func init() {
	runCmd.Flags().StringVar(&runModule, "module", "base", "module being migrated")
	runCmd.Flags().StringVar(&runInstalled, "installed", "", "currently installed module version")
	runCmd.Flags().StringVar(&runTarget, "target", "16.0.1.3", "target module version")
}
