package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pkordes/nemt-dispatch/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nemt",
	Short: "Dispatch backend for non-emergency medical transport.",
	Long: `Dispatch backend for non-emergency medical transport.

serve runs the HTTP API. The remaining commands are operator tools that
talk to the same database.`,
	SilenceUsage: true,
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/nemt/config.yaml)")
}

// loadConfig reads configuration and installs the default JSON logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	var opts []config.Option
	if cfgFile != "" {
		opts = append(opts, config.WithFile(cfgFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := newLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newLogger writes JSON lines at level. Unknown levels fall back to info.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// openPool connects to Postgres and verifies the database is reachable.
func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}
