package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/nextword/pkg/markov"
	"github.com/urfave/cli/v3"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "nextword",
		Usage:   "Train and query a first-order word Markov model",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the config file (.json, .yaml or .yml)",
				Value:   "./config.json",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error), overrides the config",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			trainCmd(),
			generateCmd(),
			serveCmd(),
			exportCmd(),
			importCmd(),
			modelsCmd(),
		},
	}
}

// setup loads the config named by --config and creates the logger every
// command writes to.
func setup(cmd *cli.Command) (*Config, *slog.Logger, error) {
	config, err := LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("error: failed to load configuration: %v", err), 1)
	}
	if cmd.IsSet("log-level") {
		config.Server.LogLevel = cmd.String("log-level")
	}

	logger := slog.New(slog.NewTextHandler(cmd.Root().ErrWriter, &slog.HandlerOptions{
		Level: parseLogLevel(config.Server.LogLevel),
	}))
	return config, logger, nil
}

// openStore opens the SQLite database, creates the schema if needed and
// prepares a Store on it.
func openStore(dataSource string, logger *slog.Logger) (*sql.DB, *markov.Store, error) {
	file, _, _ := strings.Cut(dataSource, "?")
	if dir := filepath.Dir(file); file != "" && file != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := initDB(dataSource)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = markov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to setup markov schema: %w", err)
	}
	store, err := markov.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("error creating markov store: %w", err)
	}
	store.SetLogger(logger)
	return db, store, nil
}

// initDB opens the SQLite database with the driver chosen at build time. A
// data source without parameters gets the driver's WAL and busy timeout
// settings appended.
func initDB(dataSource string) (*sql.DB, error) {
	if !strings.Contains(dataSource, "?") {
		dataSource += "?" + sqliteParams
	}
	return sql.Open(sqliteDriver, dataSource)
}

// closeStore releases the store and its database.
func closeStore(db *sql.DB, store *markov.Store, logger *slog.Logger) {
	store.Close()
	if err := db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}
}
