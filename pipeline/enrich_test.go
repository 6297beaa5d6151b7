// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/collect"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/config"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/industry"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/snapshot"
)

// geocodeHandler fakes the provider: one known address, one address that only
// resolves after cleaning, and one fixed reverse-geocode answer.
func geocodeHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/search/address.json", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("query") {
		case "경기도 수원시 영통구 삼성로 129 (매탄동)":
			_, _ = w.Write([]byte(`{"documents":[{"x":"127.0536","y":"37.2496"}]}`))
		case "서울특별시 서초구 헌릉로 12":
			// Resolves only once the unit suffix is stripped.
			_, _ = w.Write([]byte(`{"documents":[{"x":"127.0543","y":"37.4482"}]}`))
		default:
			_, _ = w.Write([]byte(`{"documents":[]}`))
		}
	})

	mux.HandleFunc("/geo/coord2regioncode.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"documents":[
			{"region_type":"B","code":"4111710200","region_1depth_name":"경기도","region_2depth_name":"수원시 영통구","region_3depth_name":"매탄동"}
		]}`))
	})

	return mux
}

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()

	server := httptest.NewServer(geocodeHandler())
	t.Cleanup(server.Close)

	dir := t.TempDir()
	store := snapshot.NewStore(filepath.Join(dir, "raw"), filepath.Join(dir, "final"), nil)

	cfg := &config.Config{
		Providers: config.Providers{
			GeocodeBaseURL: server.URL,
			GeocodeKey:     "test-key",
		},
		Tuning: config.Tuning{
			RetryAttempts:  1,
			GeocodeWorkers: 2,
		},
	}

	p, err := New(cfg, store)
	require.NoError(t, err)

	// The industry snapshot the company step enriches from.
	chain := industry.Chain{
		Depth1Code: "C", Depth1Name: "제조업",
		Depth2Code: "26", Depth2Name: "전자부품, 컴퓨터, 영상, 음향 및 통신장비 제조업",
		Depth3Code: "264", Depth3Name: "통신 및 방송장비 제조업",
	}
	_, err = store.Save(DatasetIndustryCodes, snapshot.StageFinal, industry.ChainHeader, [][]string{chain.Row()})
	require.NoError(t, err)

	return p
}

func TestBuildCompanyFinal(t *testing.T) {
	p := testPipeline(t)

	raw := collect.Frame{
		Header: collect.CompanyRawHeader,
		Rows: [][]string{
			{"00126380", "삼성전자", "", "005930", "", "", "", "", "경기도 수원시 영통구 삼성로 129 (매탄동)", "", "", "", "", "264.0", "", ""},
			{"00164742", "한국타이어", "", "005380", "", "", "", "", "서울특별시 서초구 헌릉로 12 (양재동) 3층", "", "", "", "", "999", "", ""},
		},
	}

	final, err := p.buildCompanyFinal(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, CompanyFinalHeader, final.Header)
	require.Len(t, final.Rows, 2)

	first := final.Rows[0]
	assert.Equal(t, "126380", first[0])
	assert.Equal(t, "삼성전자", first[1])
	assert.Equal(t, "4100000000", first[2])
	assert.Equal(t, "경기도", first[3])
	assert.Equal(t, "4111700000", first[4])
	assert.Equal(t, "수원시 영통구", first[5])
	assert.Equal(t, "4111710200", first[6])
	assert.Equal(t, "매탄동", first[7])
	assert.Equal(t, "127.0536", first[9])
	assert.Equal(t, "37.2496", first[10])
	assert.Equal(t, "C", first[11])
	assert.Equal(t, "제조업", first[12])
	assert.Equal(t, "264", first[15])
	assert.Equal(t, "통신 및 방송장비 제조업", first[16])

	// The second address resolves through the cleaned retry; its industry
	// code is unknown so the chain stays empty.
	second := final.Rows[1]
	assert.Equal(t, "127.0543", second[9])
	assert.Equal(t, "37.4482", second[10])
	assert.Empty(t, second[11])
	assert.Empty(t, second[15])
}

func TestBuildSchoolFinalExcludesGraduateSchools(t *testing.T) {
	p := testPipeline(t)

	raw := collect.Frame{
		Header: collect.SchoolRawHeader,
		Rows: [][]string{
			{"502040", "한국대학교", "경기도 수원시 영통구", "37.2496", "127.0536"},
			{"502041", "한국대학교 대학원", "경기도 수원시 영통구", "37.2496", "127.0536"},
			{"502042", "수원대학교", "경기도 수원시", "37.25", "127.05"},
		},
	}

	final, err := p.buildSchoolFinal(context.Background(), raw, collect.KindUniversity)
	require.NoError(t, err)

	assert.Equal(t, SchoolFinalHeader, final.Header)
	require.Len(t, final.Rows, 2)
	assert.Equal(t, "한국대학교", final.Rows[0][1])
	assert.Equal(t, "수원대학교", final.Rows[1][1])

	row := final.Rows[0]
	assert.Equal(t, "502040", row[0])
	assert.Equal(t, "4100000000", row[2])
	assert.Equal(t, "매탄동", row[7])
	assert.Equal(t, "37.2496", row[9])
	assert.Equal(t, "127.0536", row[10])
}

func TestIntegerString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"42209.0", "42209"},
		{"00126380", "126380"},
		{"264", "264"},
		{" 264 ", "264"},
		{"C", "C"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, integerString(tc.input))
		})
	}
}

func TestRoundCoord(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"127.05361234567891234", "127.0536123457"},
		{"37.2496", "37.2496"},
		{"", ""},
		{"not-a-number", "not-a-number"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, roundCoord(tc.input))
		})
	}
}
