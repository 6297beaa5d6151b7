// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/pipeline"
)

var (
	flagFullSkipCollect bool
	flagFullSkipIndex   bool
)

var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run collection, indexing and matching end to end",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, closeStore := openStore(cfg)
		defer closeStore()

		ctx := cmd.Context()

		if !flagFullSkipCollect {
			p, err := pipeline.New(cfg, store)
			if err != nil {
				return err
			}

			if err := stepError(p.Run(ctx)); err != nil {
				return err
			}
		}

		if !flagFullSkipIndex {
			if err := runIndex(ctx, cfg, store); err != nil {
				return err
			}
		}

		return runMatch(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(fullCmd)
	fullCmd.Flags().BoolVar(
		&flagFullSkipCollect,
		"skip-collect",
		false,
		"Reuse existing snapshots instead of collecting",
	)
	fullCmd.Flags().BoolVar(
		&flagFullSkipIndex,
		"skip-index",
		false,
		"Reuse the existing search index instead of rebuilding it",
	)
}
