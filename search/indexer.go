// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/uber/h3-go/v4"
)

// h3Resolution tags each document with a ~460m hexagon, coarse enough to
// group places by neighborhood.
const h3Resolution = 8

// Indexer bulk-loads place snapshots into the document store.
type Indexer struct {
	client    *Client
	batchSize int
}

// NewIndexer builds an Indexer over an existing client.
func NewIndexer(client *Client, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = 1
	}

	return &Indexer{client: client, batchSize: batchSize}
}

// IndexStats summarizes one dataset load.
type IndexStats struct {
	Indexed int // documents accepted by the store
	Skipped int // rows without coordinates
	Failed  int // per-item bulk failures
}

// IndexFrame loads one final snapshot into the index. Document ids are
// "{placeType}_{rowIndex}" over the snapshot's row numbering, so reloading
// the same snapshot overwrites rather than duplicates. Rows without
// coordinates are skipped; bulk item failures are counted and reported.
func (ix *Indexer) IndexFrame(ctx context.Context, placeType string, header []string, rows [][]string) (IndexStats, error) {
	stats := IndexStats{}

	latCol, lonCol := -1, -1

	for i, h := range header {
		switch h {
		case "lat":
			latCol = i
		case "lon":
			lonCol = i
		}
	}

	if latCol < 0 || lonCol < 0 {
		return stats, fmt.Errorf("indexing %s: snapshot has no lat/lon columns", placeType)
	}

	var (
		buf     bytes.Buffer
		pending int
	)

	flush := func() error {
		if pending == 0 {
			return nil
		}

		result, err := ix.client.Bulk(ctx, buf.Bytes())
		if err != nil {
			return err
		}

		stats.Indexed += result.Indexed
		stats.Failed += result.Failed
		buf.Reset()
		pending = 0

		return nil
	}

	for i, row := range rows {
		doc, ok := buildDoc(placeType, header, row, latCol, lonCol)
		if !ok {
			stats.Skipped++

			continue
		}

		action, _ := json.Marshal(map[string]map[string]string{
			"index": {
				"_index": ix.client.Index(),
				"_id":    fmt.Sprintf("%s_%d", placeType, i),
			},
		})

		source, err := json.Marshal(doc)
		if err != nil {
			return stats, fmt.Errorf("encoding %s document %d: %w", placeType, i, err)
		}

		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
		pending++

		if pending >= ix.batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	log.Printf("Indexed %s: %d documents, %d skipped, %d failed",
		placeType, stats.Indexed, stats.Skipped, stats.Failed)

	return stats, nil
}

// buildDoc assembles one document: typed coordinates, the H3 cell, and every
// other snapshot column as-is. Empty columns are left out.
func buildDoc(placeType string, header []string, row []string, latCol, lonCol int) (map[string]any, bool) {
	if latCol >= len(row) || lonCol >= len(row) {
		return nil, false
	}

	lat, errLat := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(row[lonCol]), 64)

	if errLat != nil || errLon != nil {
		return nil, false
	}

	doc := map[string]any{
		"place_type": placeType,
		"location":   map[string]float64{"lat": lat, "lon": lon},
		"latitude":   lat,
		"longitude":  lon,
	}

	if cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), h3Resolution); err == nil {
		doc["h3_cell"] = cell.String()
	}

	for i, col := range header {
		if i == latCol || i == lonCol || i >= len(row) {
			continue
		}

		if v := strings.TrimSpace(row[i]); v != "" {
			doc[col] = v
		}
	}

	return doc, true
}
