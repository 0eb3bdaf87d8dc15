package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/repo"
	"github.com/pkordes/nemt-dispatch/internal/service"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs <organization-id>",
	Short: "Show an organization's recent webhook deliveries.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid organization id %q: %w", args[0], err)
		}
		if logsLimit < 1 || logsLimit > service.RecentLogLimit {
			return fmt.Errorf("--limit must be between 1 and %d", service.RecentLogLimit)
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := openPool(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		logs, err := repo.NewEventLogRepo(pool).ListRecent(cmd.Context(), orgID, logsLimit)
		if err != nil {
			return err
		}
		return writeLogTable(cmd.OutOrStdout(), logs, cfg.Location)
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", service.RecentLogLimit, "maximum number of deliveries to show")
	rootCmd.AddCommand(logsCmd)
}

func writeLogTable(w io.Writer, logs []domain.WebhookEventLog, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	table := tablewriter.NewWriter(w)
	table.Header("Received", "Event", "External ID", "Status", "Reason", "Trips", "Trip ID")
	for _, l := range logs {
		tripID := "-"
		if l.TripID != nil {
			tripID = l.TripID.String()
		}
		reason := l.Reason
		if l.ErrorMessage != "" {
			reason = l.ErrorMessage
		}
		row := []string{
			l.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
			l.EventType,
			l.ExternalEventID,
			string(l.Status),
			reason,
			strconv.Itoa(l.TripsCreated),
			tripID,
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
