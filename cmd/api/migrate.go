package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/olekukonko/tablewriter"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/pkordes/nemt-dispatch/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema.",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return migrateUp(cmd.Context(), cfg.DatabaseURL)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return withProvider(cmd.Context(), cfg.DatabaseURL, func(p *goose.Provider) error {
			res, err := p.Down(cmd.Context())
			if err != nil {
				return fmt.Errorf("goose down: %w", err)
			}
			slog.Info("migration rolled back", "version", res.Source.Version, "path", res.Source.Path)
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return withProvider(cmd.Context(), cfg.DatabaseURL, func(p *goose.Provider) error {
			statuses, err := p.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("goose status: %w", err)
			}
			return writeMigrationTable(cmd.OutOrStdout(), statuses)
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withProvider opens a database/sql handle for goose, which does not speak pgxpool.
func withProvider(ctx context.Context, dsn string, fn func(*goose.Provider) error) error {
	return withSQLDB(ctx, dsn, func(db *sql.DB) error {
		provider, err := migrations.NewProvider(db)
		if err != nil {
			return err
		}
		return fn(provider)
	})
}

func withSQLDB(ctx context.Context, dsn string, fn func(*sql.DB) error) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	return fn(db)
}

func migrateUp(ctx context.Context, dsn string) error {
	return withSQLDB(ctx, dsn, func(db *sql.DB) error {
		results, err := migrations.Up(ctx, db)
		if err != nil {
			return err
		}
		for _, r := range results {
			slog.Info("migration applied", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
		}
		if len(results) == 0 {
			slog.Info("schema is up to date")
		}
		return nil
	})
}

func writeMigrationTable(w io.Writer, statuses []*goose.MigrationStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Version", "File", "State", "Applied At")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		if err := table.Append([]string{fmt.Sprint(s.Source.Version), s.Source.Path, string(s.State), applied}); err != nil {
			return err
		}
	}
	return table.Render()
}
