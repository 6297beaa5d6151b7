// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode wraps the local-places provider: address to coordinate
// lookups and coordinate to administrative-region lookups. Per-item failures
// never escape the client; callers get a not-ok result and move on.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
)

// Region is the administrative hierarchy a coordinate resolves to.
// Codes follow the 10-digit scheme: 2-digit province prefix, 5-digit
// district prefix, full 10 digits for the sub-district.
type Region struct {
	ProvinceCode    string
	ProvinceName    string
	DistrictCode    string
	DistrictName    string
	SubDistrictCode string
	SubDistrictName string
}

// Client talks to the geocoding provider.
type Client struct {
	baseURL string
	http    *http.Client
	retry   httputil.RetryPolicy
	cache   Cache
}

// Options configures New.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   httputil.RetryPolicy

	// Cache is optional; nil disables caching.
	Cache Cache

	EnableTrace bool
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	hc, err := httputil.NewClient(httputil.ClientOptions{
		Timeout: opts.Timeout,
		Headers: map[string]string{
			"Authorization": "KakaoAK " + opts.APIKey,
		},
		EnableTrace: opts.EnableTrace,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: opts.BaseURL,
		http:    hc,
		retry:   opts.Retry,
		cache:   opts.Cache,
	}, nil
}

type addressResponse struct {
	Documents []struct {
		X string `json:"x"` // longitude
		Y string `json:"y"` // latitude
	} `json:"documents"`
}

type regionResponse struct {
	Documents []struct {
		RegionType string `json:"region_type"` // "B" = legal division
		Code       string `json:"code"`
		Depth1Name string `json:"region_1depth_name"`
		Depth2Name string `json:"region_2depth_name"`
		Depth3Name string `json:"region_3depth_name"`
	} `json:"documents"`
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	return c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK {
			return httputil.DrainStatusError(resp)
		}

		defer func() { _ = resp.Body.Close() }()

		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// Coordinates resolves an address to (lon, lat). ok is false when the address
// is empty, the provider has no match, or the request ultimately failed.
func (c *Client) Coordinates(ctx context.Context, address string) (lon, lat float64, ok bool) {
	if address == "" {
		return 0, 0, false
	}

	if c.cache != nil {
		if v, hit := c.cache.Get(ctx, "addr:"+address); hit {
			return decodeCoordValue(v)
		}
	}

	q := url.Values{"query": {address}}
	rawURL := c.baseURL + "/search/address.json?" + q.Encode()

	var resp addressResponse
	if err := c.getJSON(ctx, rawURL, &resp); err != nil {
		return 0, 0, false
	}

	if len(resp.Documents) == 0 {
		return 0, 0, false
	}

	lon, errX := strconv.ParseFloat(resp.Documents[0].X, 64)
	lat, errY := strconv.ParseFloat(resp.Documents[0].Y, 64)

	if errX != nil || errY != nil {
		return 0, 0, false
	}

	if c.cache != nil {
		c.cache.Set(ctx, "addr:"+address, encodeCoordValue(lon, lat))
	}

	return lon, lat, true
}

// Region reverse-geocodes a coordinate to its legal-division hierarchy.
// The provider returns several region types; only the legal division ("B")
// carries the code scheme the pipeline uses.
func (c *Client) Region(ctx context.Context, lon, lat float64) (*Region, bool) {
	key := fmt.Sprintf("rev:%.7f,%.7f", lon, lat)

	if c.cache != nil {
		if v, hit := c.cache.Get(ctx, key); hit {
			var r Region
			if json.Unmarshal([]byte(v), &r) == nil {
				return &r, true
			}
		}
	}

	q := url.Values{
		"x":           {strconv.FormatFloat(lon, 'f', -1, 64)},
		"y":           {strconv.FormatFloat(lat, 'f', -1, 64)},
		"input_coord": {"WGS84"},
	}
	rawURL := c.baseURL + "/geo/coord2regioncode.json?" + q.Encode()

	var resp regionResponse
	if err := c.getJSON(ctx, rawURL, &resp); err != nil {
		return nil, false
	}

	for _, doc := range resp.Documents {
		if doc.RegionType != "B" {
			continue
		}

		province, district, sub := DecomposeRegionCode(doc.Code)
		if province == "" {
			return nil, false
		}

		r := &Region{
			ProvinceCode:    province,
			ProvinceName:    doc.Depth1Name,
			DistrictCode:    district,
			DistrictName:    joinNonEmpty(doc.Depth1Name, doc.Depth2Name),
			SubDistrictCode: sub,
			SubDistrictName: joinNonEmpty(doc.Depth1Name, doc.Depth2Name, doc.Depth3Name),
		}

		if c.cache != nil {
			if b, err := json.Marshal(r); err == nil {
				c.cache.Set(ctx, key, string(b))
			}
		}

		return r, true
	}

	return nil, false
}

// DecomposeRegionCode splits a legal-division code into zero-padded
// province/district/sub-district codes. Levels whose digits are missing stay
// empty; codes longer than 10 digits are malformed and yield nothing.
func DecomposeRegionCode(code string) (province, district, sub string) {
	if len(code) > 10 {
		return "", "", ""
	}

	if len(code) >= 2 {
		province = code[:2] + "00000000"
	}

	if len(code) >= 5 {
		district = code[:5] + "00000"
	}

	if len(code) == 10 {
		sub = code
	}

	return province, district, sub
}

func joinNonEmpty(parts ...string) string {
	out := ""

	for _, p := range parts {
		if p == "" {
			continue
		}

		if out != "" {
			out += " "
		}

		out += p
	}

	return out
}

func encodeCoordValue(lon, lat float64) string {
	return strconv.FormatFloat(lon, 'f', -1, 64) + "," + strconv.FormatFloat(lat, 'f', -1, 64)
}

func decodeCoordValue(v string) (lon, lat float64, ok bool) {
	var x, y float64

	if _, err := fmt.Sscanf(v, "%f,%f", &x, &y); err != nil {
		return 0, 0, false
	}

	return x, y, true
}
