package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkordes/nemt-dispatch/internal/repo"
	"github.com/pkordes/nemt-dispatch/internal/retention"
)

var pruneDays int

var pruneLogsCmd = &cobra.Command{
	Use:   "prune-logs",
	Short: "Delete webhook event logs older than the retention window.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		days := cfg.LogRetentionDays
		if cmd.Flags().Changed("days") {
			if pruneDays < 1 {
				return errors.New("--days must be at least 1")
			}
			days = pruneDays
		}
		pool, err := openPool(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := retention.NewPruner(repo.NewEventLogRepo(pool), days, nil).Run(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d log(s) older than %d day(s)\n", n, days)
		return err
	},
}

func init() {
	pruneLogsCmd.Flags().IntVar(&pruneDays, "days", 0, "retention window in days (default from LOG_RETENTION_DAYS)")
	rootCmd.AddCommand(pruneLogsCmd)
}
