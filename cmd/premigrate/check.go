package main

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report repairable defects without changing the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := setup(nil)
		if err != nil {
			return err
		}
		defer application.Close()

		diagnosis, err := application.RepairService.Diagnose(cmd.Context(), application.DB)
		if err != nil {
			return err
		}

		logger := application.Logger
		for _, col := range diagnosis.LegacyColumns {
			logger.Info("legacy column", "schema", col.SchemaName, "table", col.TableName, "column", col.ColumnName)
		}
		logger.Info("check completed",
			"clean", diagnosis.Clean(),
			"orphan_act_window_views", diagnosis.OrphanActWindowViews,
			"legacy_columns", len(diagnosis.LegacyColumns),
			"sequences", diagnosis.SequenceCount)
		return nil
	},
}
