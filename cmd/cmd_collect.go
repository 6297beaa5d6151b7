// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/pipeline"
)

var flagCollectDomain string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect place data and build dated snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, closeStore := openStore(cfg)
		defer closeStore()

		p, err := pipeline.New(cfg, store)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		var results []pipeline.StepResult

		switch flagCollectDomain {
		case "reference":
			results = p.RunReference(ctx)
		case "company":
			results = append(results, p.RunCompany(ctx))
		case "school":
			results = p.RunSchools(ctx)
		case "full":
			results = p.Run(ctx)
		default:
			return fmt.Errorf("unknown domain %q (want reference, company, school or full)", flagCollectDomain)
		}

		return stepError(results)
	},
}

// stepError turns failed steps into a command error so the exit code reflects
// the run. Fallback steps produced data and are not failures.
func stepError(results []pipeline.StepResult) error {
	failed := 0

	for _, r := range results {
		if r.Kind == pipeline.StepFailed {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d steps failed", failed, len(results))
	}

	return nil
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringVar(
		&flagCollectDomain,
		"domain",
		"full",
		"What to collect: reference, company, school or full",
	)
}
