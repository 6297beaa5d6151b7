// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
)

func schoolPage(items ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<response>
	<header><resultCode>00</resultCode><resultMsg>NORMAL SERVICE.</resultMsg></header>
	<body><items>%s</items></body>
</response>`, strings.Join(items, ""))
}

func schoolItemXML(facCd, name, adres, rnAdres, x, y string) string {
	return fmt.Sprintf(`<item><fac_cd>%s</fac_cd><fclty_nm>%s</fclty_nm><adres>%s</adres><rn_adres>%s</rn_adres><x>%s</x><y>%s</y></item>`,
		facCd, name, adres, rnAdres, x, y)
}

func newSchoolCollector(t *testing.T, handler http.Handler, kind SchoolKind) *SchoolCollector {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	collector, err := NewSchoolCollector(SchoolOptions{
		URL:        server.URL,
		ServiceKey: "test-key",
		Kind:       kind,
		Retry:      httputil.RetryPolicy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	return collector
}

func TestSchoolCollectHighSchoolFilter(t *testing.T) {
	collector := newSchoolCollector(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(schoolPage(
			schoolItemXML("100100", "여의도고등학교", "서울 영등포구 여의도동 42", "서울 영등포구 여의대방로 379", "14128900.0", "4513500.0"),
			schoolItemXML("100101", "여의도중학교", "서울 영등포구 여의도동 43", "", "14128910.0", "4513510.0"),
			schoolItemXML("100102", "여의도초등학교", "서울 영등포구 여의도동 44", "", "14128920.0", "4513520.0"),
		)))
	}), KindHighSchool)

	frame, metrics, err := collector.Collect(context.Background())
	require.NoError(t, err)

	// Only high schools survive the general feed.
	require.Len(t, frame.Rows, 1)
	assert.Equal(t, 1, metrics.Records)

	row := frame.Rows[0]
	assert.Equal(t, "100100", row[0])
	assert.Equal(t, "여의도고등학교", row[1])

	// Road address is preferred over the lot address.
	assert.Equal(t, "서울 영등포구 여의대방로 379", row[2])

	// Web Mercator converts into the Korean lat/lon box.
	lat, err := strconv.ParseFloat(row[3], 64)
	require.NoError(t, err)
	lon, err := strconv.ParseFloat(row[4], 64)
	require.NoError(t, err)
	assert.InDelta(t, 37.5, lat, 0.5)
	assert.InDelta(t, 126.9, lon, 0.5)
}

func TestSchoolCollectUniversityCodes(t *testing.T) {
	pages := map[string]string{}

	// A full first page forces a second request; its short page ends the run.
	var first []string
	for i := 0; i < schoolPageSize; i++ {
		first = append(first, schoolItemXML("", fmt.Sprintf("대학교%d", i), fmt.Sprintf("주소 %d", i), "", "14128900.0", "4513500.0"))
	}

	pages["1"] = schoolPage(first...)
	pages["2"] = schoolPage(schoolItemXML("", "마지막대학교", "주소 끝", "", "14128900.0", "4513500.0"))

	collector := newSchoolCollector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pages[r.URL.Query().Get("pageNo")]))
	}), KindUniversity)

	frame, metrics, err := collector.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, metrics.Pages)
	require.Len(t, frame.Rows, schoolPageSize+1)

	// Facility codes are synthesized sequentially across pages.
	assert.Equal(t, strconv.Itoa(universityFacCdStart), frame.Rows[0][0])
	assert.Equal(t, strconv.Itoa(universityFacCdStart+schoolPageSize), frame.Rows[schoolPageSize][0])
	assert.Equal(t, "마지막대학교", frame.Rows[schoolPageSize][1])
}

func TestSchoolCollectMissingCoordinates(t *testing.T) {
	collector := newSchoolCollector(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(schoolPage(
			schoolItemXML("100100", "한강고등학교", "서울 용산구", "", "", ""),
		)))
	}), KindHighSchool)

	frame, _, err := collector.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, frame.Rows, 1)
	assert.Empty(t, frame.Rows[0][3])
	assert.Empty(t, frame.Rows[0][4])
}

func TestSchoolCollectDropsOutOfRangeCoordinates(t *testing.T) {
	collector := newSchoolCollector(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(schoolPage(
			schoolItemXML("100100", "남산고등학교", "서울 중구 소파로 46", "", "126.97", "37.56"),
		)))
	}), KindHighSchool)

	frame, _, err := collector.Collect(context.Background())
	require.NoError(t, err)

	// Degrees in the Mercator fields convert to near-zero coordinates;
	// the row survives but without a location.
	require.Len(t, frame.Rows, 1)
	assert.Empty(t, frame.Rows[0][3])
	assert.Empty(t, frame.Rows[0][4])
}

func TestSchoolCollectFeedError(t *testing.T) {
	collector := newSchoolCollector(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<response><header><resultCode>30</resultCode><resultMsg>SERVICE KEY IS NOT REGISTERED ERROR.</resultMsg></header></response>`))
	}), KindHighSchool)

	_, _, err := collector.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVICE KEY IS NOT REGISTERED")
}
