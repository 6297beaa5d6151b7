// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/config"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/search"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/snapshot"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/spatial"
)

// place is one indexed document the fake backend answers with.
type place struct {
	placeType string
	point     spatial.Point
	source    map[string]any
}

// msearchHandler emulates the store's nearest-place semantics: per query, the
// closest place of the requested type within the radius, or an empty result.
func msearchHandler(t *testing.T, places []place) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_msearch", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var lines []string
		for _, l := range strings.Split(string(body), "\n") {
			if strings.TrimSpace(l) != "" {
				lines = append(lines, l)
			}
		}
		require.Zero(t, len(lines)%2, "msearch bodies pair a header line with a query line")

		var responses []string

		for i := 1; i < len(lines); i += 2 {
			var q struct {
				Query struct {
					Bool struct {
						Must []struct {
							Term struct {
								PlaceType string `json:"place_type"`
							} `json:"term"`
							GeoDistance struct {
								Distance string `json:"distance"`
								Location struct {
									Lat float64 `json:"lat"`
									Lon float64 `json:"lon"`
								} `json:"location"`
							} `json:"geo_distance"`
						} `json:"must"`
					} `json:"bool"`
				} `json:"query"`
				Size int `json:"size"`
			}
			require.NoError(t, json.Unmarshal([]byte(lines[i]), &q))
			require.Len(t, q.Query.Bool.Must, 2)
			assert.Equal(t, 1, q.Size)

			placeType := q.Query.Bool.Must[0].Term.PlaceType
			geo := q.Query.Bool.Must[1].GeoDistance
			radius, err := strconv.ParseFloat(strings.TrimSuffix(geo.Distance, "m"), 64)
			require.NoError(t, err)

			from := spatial.Point{Lat: geo.Location.Lat, Lon: geo.Location.Lon}

			bestIdx, bestDist := -1, radius
			for j, p := range places {
				if p.placeType != placeType {
					continue
				}

				if d := from.HaversineDistance(p.point); d <= bestDist {
					bestIdx, bestDist = j, d
				}
			}

			if bestIdx < 0 {
				responses = append(responses, `{"hits":{"total":{"value":0},"hits":[]}}`)

				continue
			}

			source, err := json.Marshal(places[bestIdx].source)
			require.NoError(t, err)

			responses = append(responses, `{"hits":{"total":{"value":1},"hits":[{"_source":`+string(source)+
				`,"sort":[`+strconv.FormatFloat(bestDist, 'f', 2, 64)+`]}]}}`)
		}

		_, _ = w.Write([]byte(`{"responses":[` + strings.Join(responses, ",") + `]}`))
	})
}

func testMatcher(t *testing.T, places []place, opts Options) *Matcher {
	t.Helper()

	server := httptest.NewServer(msearchHandler(t, places))
	t.Cleanup(server.Close)

	client, err := search.New(search.Options{
		URL:   server.URL,
		Index: "places-test",
		Retry: httputil.RetryPolicy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	if opts.Radius == nil {
		opts.Radius = func(config.PlaceType) string { return "200m" }
	}

	return New(client, opts)
}

// yeouidoHigh sits at Yeouido; devices within 200m match it.
var yeouidoHigh = place{
	placeType: "high_school",
	point:     spatial.Point{Lat: 37.5270, Lon: 126.9259},
	source: map[string]any{
		"fac_cd": "100100",
		"ctp_cd": "1100000000",
		"sig_cd": "1156000000",
		"emd_cd": "1156011000",
	},
}

func writeInput(t *testing.T, header []string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, snapshot.WriteCSV(path, header, rows))

	return path
}

func TestMatcherRun(t *testing.T) {
	matcher := testMatcher(t, []place{yeouidoHigh}, Options{
		BatchSize:     10,
		ChunkSize:     100,
		FlushInterval: 1000,
		Workers:       2,
	})

	input := writeInput(t, []string{"adid", "lat", "lon"}, [][]string{
		{"dev-near", "37.5271", "126.9260"}, // tens of meters away
		{"dev-far", "37.5665", "126.9780"},  // city hall, way outside 200m
		{"dev-bad", "not-a-lat", "126.9259"},
	})
	output := filepath.Join(t.TempDir(), "matched.csv")

	stats, err := matcher.Run(context.Background(), Job{
		PlaceType: config.PlaceHighSchool,
		InputCSV:  input,
		OutputCSV: output,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 0, stats.Abandoned)
	assert.Equal(t, 1, stats.Segments)

	header, rows, err := snapshot.ReadCSV(output, snapshot.EncodingUTF8)
	require.NoError(t, err)

	assert.Equal(t, schoolHeader, header)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "dev-near", row[0])
	assert.Equal(t, "37.5271", row[1])
	assert.Equal(t, "126.9260", row[2])
	assert.NotEmpty(t, row[3])
	assert.Equal(t, "100100", row[4])
	assert.Equal(t, "1100000000", row[5])
	assert.Equal(t, "1156011000", row[7])
}

func TestMatcherCompanyKeepsDaytimeOnly(t *testing.T) {
	office := place{
		placeType: "company",
		point:     spatial.Point{Lat: 37.2496, Lon: 127.0536},
		source: map[string]any{
			"corp_cd":        "126380",
			"corp_depth1_cd": "C",
			"ctp_cd":         "4100000000",
			"sig_cd":         "4111700000",
			"emd_cd":         "4111710200",
		},
	}

	matcher := testMatcher(t, []place{office}, Options{
		BatchSize:     10,
		ChunkSize:     100,
		FlushInterval: 1000,
		Workers:       1,
	})

	input := writeInput(t, []string{"adid", "lat", "lon", "time_type"}, [][]string{
		{"dev-day", "37.2496", "127.0536", "DAY"},
		{"dev-night", "37.2496", "127.0536", "NIGHT"},
	})
	output := filepath.Join(t.TempDir(), "matched.csv")

	stats, err := matcher.Run(context.Background(), Job{
		PlaceType: config.PlaceCompany,
		InputCSV:  input,
		OutputCSV: output,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Matched)

	header, rows, err := snapshot.ReadCSV(output, snapshot.EncodingUTF8)
	require.NoError(t, err)

	assert.Equal(t, companyHeader, header)
	require.Len(t, rows, 1)
	assert.Equal(t, "dev-day", rows[0][0])
	assert.Equal(t, "126380", rows[0][4])
	assert.Equal(t, "C", rows[0][5])
	assert.Equal(t, "4111710200", rows[0][12])
}

func matchedAdids(t *testing.T, path string) []string {
	t.Helper()

	_, rows, err := snapshot.ReadCSV(path, snapshot.EncodingUTF8)
	require.NoError(t, err)

	var adids []string
	for _, row := range rows {
		adids = append(adids, row[0])
	}

	sort.Strings(adids)

	return adids
}

func TestMatcherChunkingDoesNotChangeResults(t *testing.T) {
	var rows [][]string
	for i := 0; i < 10; i++ {
		// Every other device is near the school.
		lat := "37.5271"
		if i%2 == 1 {
			lat = "37.5665"
		}

		rows = append(rows, []string{"dev-" + strconv.Itoa(i), lat, "126.9259"})
	}

	input := writeInput(t, []string{"adid", "lat", "lon"}, rows)

	run := func(chunkSize, batchSize int) []string {
		matcher := testMatcher(t, []place{yeouidoHigh}, Options{
			BatchSize:     batchSize,
			ChunkSize:     chunkSize,
			FlushInterval: 1000,
			Workers:       3,
		})

		output := filepath.Join(t.TempDir(), "matched.csv")
		_, err := matcher.Run(context.Background(), Job{
			PlaceType: config.PlaceHighSchool,
			InputCSV:  input,
			OutputCSV: output,
		})
		require.NoError(t, err)

		return matchedAdids(t, output)
	}

	assert.Equal(t, run(100, 100), run(3, 2))
}

func TestMatcherCheckpointFlushes(t *testing.T) {
	var rows [][]string
	for i := 0; i < 6; i++ {
		rows = append(rows, []string{"dev-" + strconv.Itoa(i), "37.5271", "126.9260"})
	}

	input := writeInput(t, []string{"adid", "lat", "lon"}, rows)
	output := filepath.Join(t.TempDir(), "matched.csv")

	matcher := testMatcher(t, []place{yeouidoHigh}, Options{
		BatchSize:     2,
		ChunkSize:     2,
		FlushInterval: 2,
		Workers:       1,
	})

	stats, err := matcher.Run(context.Background(), Job{
		PlaceType: config.PlaceHighSchool,
		InputCSV:  input,
		OutputCSV: output,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Matched)
	assert.GreaterOrEqual(t, stats.Segments, 2)

	// Multiple checkpoint segments still yield a single header.
	header, got, err := snapshot.ReadCSV(output, snapshot.EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, schoolHeader, header)
	assert.Len(t, got, 6)

	assert.Equal(t,
		[]string{"dev-0", "dev-1", "dev-2", "dev-3", "dev-4", "dev-5"},
		matchedAdids(t, output))
}

func TestMatcherOverwritesPreviousOutput(t *testing.T) {
	input := writeInput(t, []string{"adid", "lat", "lon"}, [][]string{
		{"dev-near", "37.5271", "126.9260"},
	})
	output := filepath.Join(t.TempDir(), "matched.csv")

	// Stale rows from an earlier run must not leak into this one.
	require.NoError(t, snapshot.WriteCSV(output, schoolHeader, [][]string{
		{"stale", "0", "0", "0", "0", "0", "0", "0"},
	}))

	matcher := testMatcher(t, []place{yeouidoHigh}, Options{
		BatchSize:     10,
		ChunkSize:     100,
		FlushInterval: 1000,
		Workers:       1,
	})

	_, err := matcher.Run(context.Background(), Job{
		PlaceType: config.PlaceHighSchool,
		InputCSV:  input,
		OutputCSV: output,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"dev-near"}, matchedAdids(t, output))
}
