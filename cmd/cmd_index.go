// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/config"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/pipeline"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/search"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/snapshot"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the search index from the latest final snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, closeStore := openStore(cfg)
		defer closeStore()

		return runIndex(cmd.Context(), cfg, store)
	},
}

// indexedDatasets maps each place type to its final snapshot dataset.
var indexedDatasets = []struct {
	placeType config.PlaceType
	dataset   string
}{
	{config.PlaceHighSchool, pipeline.DatasetHighSchools},
	{config.PlaceUniversity, pipeline.DatasetUniversities},
	{config.PlaceCompany, pipeline.DatasetCompanies},
}

// runIndex recreates the index and loads every available final snapshot.
// A missing snapshot skips its place type; loads are full rebuilds.
func runIndex(ctx context.Context, cfg *config.Config, store *snapshot.Store) error {
	client, err := searchClient(cfg)
	if err != nil {
		return err
	}

	if err := client.RecreateIndex(ctx); err != nil {
		return err
	}

	log.Printf("Recreated index %s", client.Index())

	indexer := search.NewIndexer(client, cfg.Tuning.IndexBatchSize)
	loaded := 0

	for _, d := range indexedDatasets {
		path, err := store.Latest(d.dataset, snapshot.StageFinal)
		if err != nil {
			log.Printf("No final snapshot for %s, skipping: %v", d.dataset, err)

			continue
		}

		header, rows, err := snapshot.ReadCSV(path, snapshot.EncodingUTF8)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		if _, err := indexer.IndexFrame(ctx, string(d.placeType), header, rows); err != nil {
			return fmt.Errorf("indexing %s: %w", d.dataset, err)
		}

		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("no final snapshots to index under %s", cfg.Paths.FinalDir)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
