// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

// Package match resolves device locations to their nearest indexed place.
// Input CSVs are streamed in fixed-size chunks, grouped into multi-search
// batches, and dispatched on a bounded pool; results checkpoint to the
// output file as they accumulate.
package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/config"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/search"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/snapshot"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Job is one matching run: a device-location CSV against one place type.
type Job struct {
	PlaceType config.PlaceType
	InputCSV  string
	OutputCSV string
}

// Options tunes the matcher.
type Options struct {
	// Radius returns the geo_distance radius for a place type, e.g. "200m".
	Radius func(config.PlaceType) string

	BatchSize     int // msearch sub-queries per request
	ChunkSize     int // input rows per streamed chunk
	FlushInterval int // result rows buffered before a checkpoint write
	Workers       int // concurrent msearch requests
}

// Stats summarizes one job.
type Stats struct {
	Processed int // input rows that reached the search
	Matched   int // rows with a place inside the radius
	Abandoned int // rows lost to batches that failed all retries
	Segments  int // checkpoint writes
}

// Matcher runs matching jobs against the document store.
type Matcher struct {
	client *search.Client
	opts   Options
}

// New builds a Matcher.
func New(client *search.Client, opts Options) *Matcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1
	}

	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	return &Matcher{client: client, opts: opts}
}

// location is one usable input row. The raw lat/lon strings are echoed to
// the output unchanged.
type location struct {
	lat, lon       float64
	latRaw, lonRaw string
	adid           string
}

// schoolHeader and companyHeader are the output column sets.
var (
	schoolHeader = []string{
		"adid", "lat", "lon", "distance",
		"fac_cd", "ctp_cd", "sig_cd", "emd_cd",
	}
	companyHeader = []string{
		"adid", "lat", "lon", "distance",
		"corp_cd",
		"corp_depth1_cd", "corp_depth2_cd", "corp_depth3_cd",
		"corp_depth4_cd", "corp_depth5_cd",
		"ctp_cd", "sig_cd", "emd_cd",
	}
)

func outputHeader(pt config.PlaceType) []string {
	if pt == config.PlaceCompany {
		return companyHeader
	}

	return schoolHeader
}

// Run streams the input CSV and writes matches to the output CSV. The output
// is rewritten from scratch; a header goes only into the first segment.
func (m *Matcher) Run(ctx context.Context, job Job) (*Stats, error) {
	log.Printf("Matching %s: %s -> %s (radius %s)",
		job.PlaceType, job.InputCSV, job.OutputCSV, m.opts.Radius(job.PlaceType))

	reader, closer, err := snapshot.NewReader(job.InputCSV, snapshot.EncodingUTF8)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", job.InputCSV, err)
	}

	defer func() { _ = closer.Close() }()

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", job.InputCSV, err)
	}

	cols, err := inputCols(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", job.InputCSV, err)
	}

	// Previous runs must not leak rows into this one.
	if err := os.Remove(job.OutputCSV); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("resetting %s: %w", job.OutputCSV, err)
	}

	stats := &Stats{}

	var (
		chunk   []location
		results [][]string
		chunkNo int
	)

	flush := func(force bool) error {
		if len(results) == 0 || (!force && len(results) < m.opts.FlushInterval) {
			return nil
		}

		if err := snapshot.AppendCSV(job.OutputCSV, outputHeader(job.PlaceType), results); err != nil {
			return fmt.Errorf("writing %s: %w", job.OutputCSV, err)
		}

		stats.Segments++
		log.Printf("Checkpoint: %d rows appended to %s", len(results), job.OutputCSV)
		results = results[:0]

		return nil
	}

	processChunk := func() error {
		if len(chunk) == 0 {
			return nil
		}

		chunkNo++
		log.Printf("Chunk %d: %d locations", chunkNo, len(chunk))

		matched, abandoned := m.matchLocations(ctx, job.PlaceType, chunk)
		results = append(results, matched...)
		stats.Processed += len(chunk)
		stats.Matched += len(matched)
		stats.Abandoned += abandoned
		chunk = chunk[:0]

		return flush(false)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", job.InputCSV, err)
		}

		loc, ok := parseLocation(record, cols, job.PlaceType)
		if !ok {
			continue
		}

		chunk = append(chunk, loc)

		if len(chunk) >= m.opts.ChunkSize {
			if err := processChunk(); err != nil {
				return stats, err
			}
		}
	}

	if err := processChunk(); err != nil {
		return stats, err
	}

	if err := flush(true); err != nil {
		return stats, err
	}

	log.Printf("Matching %s done: %d processed, %d matched, %d abandoned, %d segments",
		job.PlaceType, stats.Processed, stats.Matched, stats.Abandoned, stats.Segments)

	return stats, nil
}

type inputColumns struct {
	adid, lat, lon, timeType int
}

func inputCols(header []string) (inputColumns, error) {
	cols := inputColumns{adid: -1, lat: -1, lon: -1, timeType: -1}

	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "adid":
			cols.adid = i
		case "lat":
			cols.lat = i
		case "lon":
			cols.lon = i
		case "time_type":
			cols.timeType = i
		}
	}

	if cols.adid < 0 || cols.lat < 0 || cols.lon < 0 {
		return cols, errors.New("input needs adid, lat and lon columns")
	}

	return cols, nil
}

// parseLocation filters one input record: coordinates must parse, and
// company inputs keep only daytime observations.
func parseLocation(record []string, cols inputColumns, pt config.PlaceType) (location, bool) {
	get := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[i])
	}

	if pt == config.PlaceCompany && cols.timeType >= 0 && get(cols.timeType) != "DAY" {
		return location{}, false
	}

	latRaw, lonRaw := get(cols.lat), get(cols.lon)

	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lon, errLon := strconv.ParseFloat(lonRaw, 64)

	if errLat != nil || errLon != nil {
		return location{}, false
	}

	return location{lat: lat, lon: lon, latRaw: latRaw, lonRaw: lonRaw, adid: get(cols.adid)}, true
}

// matchLocations batches one chunk and dispatches the batches on a bounded
// pool. Results arrive in completion order; a batch whose request failed all
// retries is abandoned, not retried across chunks.
func (m *Matcher) matchLocations(ctx context.Context, pt config.PlaceType, locs []location) ([][]string, int) {
	var batches [][]location

	for start := 0; start < len(locs); start += m.opts.BatchSize {
		end := start + m.opts.BatchSize
		if end > len(locs) {
			end = len(locs)
		}

		batches = append(batches, locs[start:end])
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(batches),
			progressbar.OptionSetDescription("Matching "+string(pt)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		results   [][]string
		abandoned int
	)

	semaphore := make(chan struct{}, m.opts.Workers)

	for _, batch := range batches {
		wg.Add(1)

		go func(batch []location) {
			defer wg.Done()
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			rows, err := m.matchBatch(ctx, pt, batch)

			mu.Lock()
			if err != nil {
				abandoned += len(batch)
				log.Printf("Batch of %d abandoned: %v", len(batch), err)
			} else {
				results = append(results, rows...)
			}
			mu.Unlock()

			if bar != nil {
				_ = bar.Add(1)
			}
		}(batch)
	}

	wg.Wait()

	return results, abandoned
}

// matchBatch sends one msearch request: per row, a term filter on the place
// type plus a geo_distance filter, nearest hit only.
func (m *Matcher) matchBatch(ctx context.Context, pt config.PlaceType, batch []location) ([][]string, error) {
	body, err := m.buildBody(pt, batch)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.MSearch(ctx, body)
	if err != nil {
		return nil, err
	}

	if len(resp.Responses) != len(batch) {
		return nil, fmt.Errorf("msearch returned %d responses for %d queries", len(resp.Responses), len(batch))
	}

	var rows [][]string

	for i, sub := range resp.Responses {
		// Error-tagged or empty sub-responses yield no row.
		if len(sub.Error) > 0 || sub.Hits.Total.Value == 0 || len(sub.Hits.Hits) == 0 {
			continue
		}

		rows = append(rows, resultRow(pt, batch[i], sub.Hits.Hits[0]))
	}

	return rows, nil
}

func (m *Matcher) buildBody(pt config.PlaceType, batch []location) ([]byte, error) {
	var buf strings.Builder

	radius := m.opts.Radius(pt)

	for _, loc := range batch {
		head, err := json.Marshal(map[string]string{"index": m.client.Index()})
		if err != nil {
			return nil, err
		}

		point := map[string]float64{"lat": loc.lat, "lon": loc.lon}
		query := map[string]any{
			"query": map[string]any{
				"bool": map[string]any{
					"must": []any{
						map[string]any{"term": map[string]any{"place_type": string(pt)}},
						map[string]any{"geo_distance": map[string]any{
							"distance": radius,
							"location": point,
						}},
					},
				},
			},
			"sort": []any{
				map[string]any{"_geo_distance": map[string]any{
					"location": point,
					"order":    "asc",
					"unit":     "m",
				}},
			},
			"size":    1,
			"_source": true,
		}

		q, err := json.Marshal(query)
		if err != nil {
			return nil, err
		}

		buf.Write(head)
		buf.WriteByte('\n')
		buf.Write(q)
		buf.WriteByte('\n')
	}

	return []byte(buf.String()), nil
}

func resultRow(pt config.PlaceType, loc location, hit search.Hit) []string {
	distance := ""
	if len(hit.Sort) > 0 {
		distance = strconv.FormatFloat(hit.Sort[0], 'f', -1, 64)
	}

	str := func(key string) string {
		v, ok := hit.Source[key]
		if !ok || v == nil {
			return ""
		}

		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return fmt.Sprint(t)
		}
	}

	row := []string{loc.adid, loc.latRaw, loc.lonRaw, distance}

	if pt == config.PlaceCompany {
		row = append(row,
			str("corp_cd"),
			str("corp_depth1_cd"), str("corp_depth2_cd"), str("corp_depth3_cd"),
			str("corp_depth4_cd"), str("corp_depth5_cd"),
		)
	} else {
		row = append(row, str("fac_cd"))
	}

	return append(row, str("ctp_cd"), str("sig_cd"), str("emd_cd"))
}
