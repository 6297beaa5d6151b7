// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/config"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/match"
)

var flagMatchPlace string

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match device location logs to the nearest indexed place",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		return runMatch(cmd.Context(), cfg)
	},
}

// matchJobs returns the standard jobs: one device-location export per place
// type, matched into one output file each.
func matchJobs(cfg *config.Config) []match.Job {
	return []match.Job{
		{
			PlaceType: config.PlaceHighSchool,
			InputCSV:  filepath.Join(cfg.Paths.DMPDir, "high_adid.csv"),
			OutputCSV: filepath.Join(cfg.Paths.OutputDir, "high_school_matched.csv"),
		},
		{
			PlaceType: config.PlaceUniversity,
			InputCSV:  filepath.Join(cfg.Paths.DMPDir, "univ_adid.csv"),
			OutputCSV: filepath.Join(cfg.Paths.OutputDir, "university_matched.csv"),
		},
		{
			PlaceType: config.PlaceCompany,
			InputCSV:  filepath.Join(cfg.Paths.DMPDir, "work_adid.csv"),
			OutputCSV: filepath.Join(cfg.Paths.OutputDir, "company_matched.csv"),
		},
	}
}

func runMatch(ctx context.Context, cfg *config.Config) error {
	client, err := searchClient(cfg)
	if err != nil {
		return err
	}

	matcher := match.New(client, match.Options{
		Radius:        cfg.DefaultRadius,
		BatchSize:     cfg.Tuning.SearchBatch,
		ChunkSize:     cfg.Tuning.ChunkSize,
		FlushInterval: cfg.Tuning.FlushInterval,
		Workers:       cfg.Tuning.MatchWorkers,
	})

	ran := 0

	for _, job := range matchJobs(cfg) {
		if flagMatchPlace != "" && flagMatchPlace != string(job.PlaceType) {
			continue
		}

		if _, err := os.Stat(job.InputCSV); err != nil {
			log.Printf("No input for %s, skipping: %s", job.PlaceType, job.InputCSV)

			continue
		}

		if _, err := matcher.Run(ctx, job); err != nil {
			return fmt.Errorf("matching %s: %w", job.PlaceType, err)
		}

		ran++
	}

	if ran == 0 {
		return fmt.Errorf("no matching jobs ran, check %s", cfg.Paths.DMPDir)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().StringVar(
		&flagMatchPlace,
		"place",
		"",
		"Restrict to one place type: high_school, university or company",
	)
}
