// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
)

type mapCache struct {
	entries map[string]string
	gets    int
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]string{}}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool) {
	c.gets++
	v, ok := c.entries[key]

	return v, ok
}

func (c *mapCache) Set(_ context.Context, key, value string) {
	c.sets++
	c.entries[key] = value
}

func testClient(t *testing.T, handler http.Handler, cache Cache) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Options{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Retry:   httputil.RetryPolicy{MaxAttempts: 1},
		Cache:   cache,
	})
	require.NoError(t, err)

	return client
}

func TestCoordinates(t *testing.T) {
	calls := 0
	cache := newMapCache()
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/search/address.json", r.URL.Path)
		assert.Equal(t, "KakaoAK test-key", r.Header.Get("Authorization"))

		switch r.URL.Query().Get("query") {
		case "서울특별시 영등포구 여의대로 128":
			_, _ = w.Write([]byte(`{"documents":[{"x":"126.9259","y":"37.5270"}]}`))
		default:
			_, _ = w.Write([]byte(`{"documents":[]}`))
		}
	}), cache)

	ctx := context.Background()

	lon, lat, ok := client.Coordinates(ctx, "서울특별시 영등포구 여의대로 128")
	require.True(t, ok)
	assert.InDelta(t, 126.9259, lon, 1e-9)
	assert.InDelta(t, 37.5270, lat, 1e-9)

	// Second lookup comes from the cache, not the provider.
	lon2, lat2, ok := client.Coordinates(ctx, "서울특별시 영등포구 여의대로 128")
	require.True(t, ok)
	assert.Equal(t, lon, lon2)
	assert.Equal(t, lat, lat2)
	assert.Equal(t, 1, calls)

	_, _, ok = client.Coordinates(ctx, "존재하지 않는 주소")
	assert.False(t, ok)

	_, _, ok = client.Coordinates(ctx, "")
	assert.False(t, ok)
}

func TestRegion(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/coord2regioncode.json", r.URL.Path)
		assert.Equal(t, "WGS84", r.URL.Query().Get("input_coord"))

		_, _ = w.Write([]byte(`{"documents":[
			{"region_type":"H","code":"1156051500","region_1depth_name":"서울특별시","region_2depth_name":"영등포구","region_3depth_name":"여의동"},
			{"region_type":"B","code":"1156011000","region_1depth_name":"서울특별시","region_2depth_name":"영등포구","region_3depth_name":"여의도동"}
		]}`))
	}), nil)

	region, ok := client.Region(context.Background(), 126.9259, 37.5270)
	require.True(t, ok)

	assert.Equal(t, "1100000000", region.ProvinceCode)
	assert.Equal(t, "서울특별시", region.ProvinceName)
	assert.Equal(t, "1156000000", region.DistrictCode)
	assert.Equal(t, "서울특별시 영등포구", region.DistrictName)
	assert.Equal(t, "1156011000", region.SubDistrictCode)
	assert.Equal(t, "서울특별시 영등포구 여의도동", region.SubDistrictName)
}

func TestRegionNoLegalDivision(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"documents":[{"region_type":"H","code":"1156051500"}]}`))
	}), nil)

	_, ok := client.Region(context.Background(), 126.9259, 37.5270)
	assert.False(t, ok)
}

func TestDecomposeRegionCode(t *testing.T) {
	tests := []struct {
		code     string
		province string
		district string
		sub      string
	}{
		{"1156011000", "1100000000", "1156000000", "1156011000"},
		{"11560", "1100000000", "1156000000", ""},
		{"11", "1100000000", "", ""},
		{"1", "", "", ""},
		{"", "", "", ""},
		{"11560110001", "", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			province, district, sub := DecomposeRegionCode(tc.code)
			assert.Equal(t, tc.province, province)
			assert.Equal(t, tc.district, district)
			assert.Equal(t, tc.sub, sub)
		})
	}
}
