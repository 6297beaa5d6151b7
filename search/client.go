// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

// Package search is the boundary to the geo document store. The store stays
// an opaque HTTP collaborator: index management, NDJSON bulk loads, and
// NDJSON multi-search are the only operations.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
)

// Options configures New.
type Options struct {
	URL      string // e.g. https://10.0.0.1:9200
	User     string
	Password string
	CACert   string // CA bundle path, empty for plain http
	Index    string
	Timeout  time.Duration
	Retry    httputil.RetryPolicy

	EnableTrace bool
}

// Client talks to the document store.
type Client struct {
	opts Options
	http *http.Client
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	hc, err := httputil.NewClient(httputil.ClientOptions{
		Timeout:     opts.Timeout,
		CACert:      opts.CACert,
		EnableTrace: opts.EnableTrace,
	})
	if err != nil {
		return nil, err
	}

	return &Client{opts: opts, http: hc}, nil
}

// Index returns the configured index name.
func (c *Client) Index() string {
	return c.opts.Index
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var out []byte

	err := c.opts.Retry.Do(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.opts.URL+path, reader)
		if err != nil {
			return err
		}

		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		if c.opts.User != "" {
			req.SetBasicAuth(c.opts.User, c.opts.Password)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return httputil.DrainStatusError(resp)
		}

		defer func() { _ = resp.Body.Close() }()

		out, err = io.ReadAll(resp.Body)

		return err
	})

	return out, err
}

// RecreateIndex deletes the index when it exists and creates it afresh with
// the fixed mapping. Loads are full rebuilds, never incremental.
func (c *Client) RecreateIndex(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodDelete, "/"+c.opts.Index, "", nil); err != nil {
		var statusErr *httputil.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			return fmt.Errorf("deleting index %s: %w", c.opts.Index, err)
		}
	}

	if _, err := c.do(ctx, http.MethodPut, "/"+c.opts.Index, "application/json", []byte(indexMapping)); err != nil {
		return fmt.Errorf("creating index %s: %w", c.opts.Index, err)
	}

	return nil
}

// BulkResult summarizes one _bulk call.
type BulkResult struct {
	Indexed int
	Failed  int
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error"`
	} `json:"items"`
}

// Bulk sends an NDJSON bulk body. Per-item failures are counted, not fatal.
func (c *Client) Bulk(ctx context.Context, body []byte) (BulkResult, error) {
	out, err := c.do(ctx, http.MethodPost, "/_bulk", "application/x-ndjson", body)
	if err != nil {
		return BulkResult{}, fmt.Errorf("bulk load: %w", err)
	}

	var resp bulkResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return BulkResult{}, fmt.Errorf("decoding bulk response: %w", err)
	}

	ret := BulkResult{}

	for _, item := range resp.Items {
		for _, op := range item {
			if op.Status >= 200 && op.Status < 300 {
				ret.Indexed++
			} else {
				ret.Failed++
			}
		}
	}

	return ret, nil
}

// Hit is one document match.
type Hit struct {
	Source map[string]any `json:"_source"`
	Sort   []float64      `json:"sort"`
}

// SearchResponse is one sub-response of an msearch call.
type SearchResponse struct {
	Error json.RawMessage `json:"error"`
	Hits  struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

// MSearchResponse is the envelope of an msearch call.
type MSearchResponse struct {
	Responses []SearchResponse `json:"responses"`
}

// MSearch sends an NDJSON multi-search body.
func (c *Client) MSearch(ctx context.Context, body []byte) (*MSearchResponse, error) {
	out, err := c.do(ctx, http.MethodPost, "/_msearch", "application/x-ndjson", body)
	if err != nil {
		return nil, fmt.Errorf("msearch: %w", err)
	}

	var resp MSearchResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("decoding msearch response: %w", err)
	}

	return &resp, nil
}

// indexMapping is the fixed schema: keyword codes, keyword+text dual name
// fields, a geo_point for distance queries, and an H3 cell for coarse
// spatial grouping.
const indexMapping = `{
  "mappings": {
    "properties": {
      "place_type": {"type": "keyword"},
      "location": {"type": "geo_point"},
      "latitude": {"type": "double"},
      "longitude": {"type": "double"},
      "h3_cell": {"type": "keyword"},
      "ctp_cd": {"type": "keyword"},
      "ctp_nm": {"type": "keyword", "fields": {"text": {"type": "text", "analyzer": "standard"}}},
      "sig_cd": {"type": "keyword"},
      "sig_nm": {"type": "keyword", "fields": {"text": {"type": "text", "analyzer": "standard"}}},
      "emd_cd": {"type": "keyword"},
      "emd_nm": {"type": "keyword", "fields": {"text": {"type": "text", "analyzer": "standard"}}},
      "all_addr_nm": {"type": "text", "analyzer": "standard", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
      "fac_cd": {"type": "keyword"},
      "fac_nm": {"type": "keyword", "fields": {"text": {"type": "text", "analyzer": "standard"}}},
      "corp_cd": {"type": "keyword"},
      "corp_nm": {"type": "keyword", "fields": {"text": {"type": "text", "analyzer": "standard"}}},
      "corp_depth1_cd": {"type": "keyword"},
      "corp_depth1": {"type": "keyword"},
      "corp_depth2_cd": {"type": "keyword"},
      "corp_depth2": {"type": "keyword"},
      "corp_depth3_cd": {"type": "keyword"},
      "corp_depth3": {"type": "keyword"},
      "corp_depth4_cd": {"type": "keyword"},
      "corp_depth4": {"type": "keyword"},
      "corp_depth5_cd": {"type": "keyword"},
      "corp_depth5": {"type": "keyword"}
    }
  }
}`
