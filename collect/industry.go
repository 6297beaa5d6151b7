// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/industry"
)

// IndustryRawHeader is the raw snapshot column set for the flat code list.
var IndustryRawHeader = []string{"code", "original_code", "name"}

// IndustryOptions configures NewIndustryCollector.
type IndustryOptions struct {
	URL        string
	ServiceKey string
	PageSize   int
	Delay      time.Duration
	Timeout    time.Duration
	Retry      httputil.RetryPolicy

	EnableTrace bool
}

// IndustryCollector pages through the industry classification code list.
type IndustryCollector struct {
	opts IndustryOptions
	http *http.Client
}

func NewIndustryCollector(opts IndustryOptions) (*IndustryCollector, error) {
	hc, err := httputil.NewClient(httputil.ClientOptions{
		Timeout:     opts.Timeout,
		EnableTrace: opts.EnableTrace,
	})
	if err != nil {
		return nil, err
	}

	return &IndustryCollector{opts: opts, http: hc}, nil
}

type industryPage struct {
	Page         int               `json:"page"`
	PerPage      int               `json:"perPage"`
	TotalCount   int               `json:"totalCount"`
	CurrentCount int               `json:"currentCount"`
	Data         []json.RawMessage `json:"data"`
	Message      string            `json:"message"`
}

// The provider labels its columns in Korean.
type industryItem struct {
	Code         string `json:"업종코드"`
	OriginalCode string `json:"원본업종코드"`
	Name         string `json:"업종한글명"`
}

// Collect fetches every page of the flat code list.
func (c *IndustryCollector) Collect(ctx context.Context) (Frame, *Metrics, error) {
	frame := Frame{Header: IndustryRawHeader}
	metrics := &Metrics{}

	for page := 1; ; page++ {
		body, err := c.fetchPage(ctx, page)
		if err != nil {
			return Frame{}, metrics, fmt.Errorf("fetching industry codes page %d: %w", page, err)
		}

		metrics.Pages++

		if len(body.Data) == 0 {
			if page == 1 {
				log.Printf("Industry code registry returned no rows")
			}

			break
		}

		for _, raw := range body.Data {
			var item industryItem
			if err := json.Unmarshal(raw, &item); err != nil {
				return Frame{}, metrics, fmt.Errorf("decoding industry item: %w", err)
			}

			frame.Rows = append(frame.Rows, []string{
				industry.NormalizeCode(item.Code),
				item.OriginalCode,
				item.Name,
			})
		}

		metrics.Records = len(frame.Rows)

		if len(frame.Rows) >= body.TotalCount || len(body.Data) < c.opts.PageSize {
			break
		}

		if page >= maxPages {
			log.Printf("Industry codes: page ceiling reached at %d, stopping", page)

			break
		}

		sleep(ctx, c.opts.Delay)
	}

	return frame, metrics, nil
}

func (c *IndustryCollector) fetchPage(ctx context.Context, page int) (*industryPage, error) {
	q := url.Values{
		"serviceKey": {c.opts.ServiceKey},
		"page":       {strconv.Itoa(page)},
		"perPage":    {strconv.Itoa(c.opts.PageSize)},
		"returnType": {"JSON"},
	}

	var body industryPage

	err := c.opts.Retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL+"?"+q.Encode(), nil)
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

		body = industryPage{}

		return json.NewDecoder(resp.Body).Decode(&body)
	})
	if err != nil {
		return nil, err
	}

	if body.Data == nil && body.Message != "" {
		return nil, fmt.Errorf("registry error: %s", body.Message)
	}

	return &body, nil
}

// FinalizeIndustry reduces a raw code list to the deduplicated 5-depth chain
// table.
func FinalizeIndustry(raw Frame) (Frame, error) {
	cols, err := raw.RequireCols("code", "original_code", "name")
	if err != nil {
		return Frame{}, fmt.Errorf("finalizing industry codes: %w", err)
	}

	codes := make([]industry.RawCode, 0, len(raw.Rows))

	for _, row := range raw.Rows {
		codes = append(codes, industry.RawCode{
			Code:         raw.Get(row, cols[0]),
			OriginalCode: raw.Get(row, cols[1]),
			Name:         raw.Get(row, cols[2]),
		})
	}

	h := industry.Build(codes)

	final := Frame{Header: industry.ChainHeader}
	for _, chain := range h.Chains() {
		final.Rows = append(final.Rows, chain.Row())
	}

	return final, nil
}
