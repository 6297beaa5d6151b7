// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/config"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/search"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/snapshot"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "jobseg",
	Short: "occupation segments from Korean public place data",
	Long: `
jobseg collects Korean public and commercial place data, enriches it with
coordinates and administrative region codes, loads it into a geo search
index, and matches device location logs to the nearest indexed place.
`,
}

var (
	flagDataDir string
	flagEnvFile string
	flagTrace   bool
	flagDryRun  bool
)

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&flagDataDir,
		"data-dir",
		"",
		"Base directory for snapshots and matcher artifacts",
	)
	rootCmd.PersistentFlags().StringVar(
		&flagEnvFile,
		"env-file",
		".env",
		"Environment file with API keys and endpoints",
	)
	rootCmd.PersistentFlags().BoolVar(
		&flagTrace,
		"trace-http",
		false,
		"Display HTTP requests-responses",
	)
	rootCmd.PersistentFlags().BoolVar(
		&flagDryRun,
		"dry-run",
		false,
		"Collect and process without persisting snapshots",
	)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagEnvFile, flagDataDir)
	if err != nil {
		return nil, err
	}

	cfg.HTTPTrace = flagTrace
	cfg.DryRun = flagDryRun

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// openStore opens the snapshot store backed by the DuckDB registry. When the
// registry cannot be opened the store still works in scan-only mode.
func openStore(cfg *config.Config) (*snapshot.Store, func()) {
	db, err := sql.Open("duckdb", cfg.Paths.RegistryDB)
	if err != nil {
		log.Printf("Snapshot registry unavailable, using directory scans: %v", err)

		return snapshot.NewStore(cfg.Paths.RawDir, cfg.Paths.FinalDir, nil), func() {}
	}

	registry, err := snapshot.NewSQLRegistry(db)
	if err != nil {
		log.Printf("Snapshot registry unavailable, using directory scans: %v", err)
		_ = db.Close()

		return snapshot.NewStore(cfg.Paths.RawDir, cfg.Paths.FinalDir, nil), func() {}
	}

	store := snapshot.NewStore(cfg.Paths.RawDir, cfg.Paths.FinalDir, registry)

	return store, func() { _ = db.Close() }
}

func searchClient(cfg *config.Config) (*search.Client, error) {
	return search.New(search.Options{
		URL:         cfg.Search.URL,
		User:        cfg.Search.User,
		Password:    cfg.Search.Password,
		CACert:      cfg.Search.CACert,
		Index:       cfg.Search.IndexName,
		Timeout:     cfg.Tuning.HTTPTimeout,
		Retry:       cfg.RetryPolicy(),
		EnableTrace: cfg.HTTPTrace,
	})
}
