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
)

// RegionRawHeader is the raw snapshot column set for legal-division codes.
var RegionRawHeader = []string{
	"region_cd", "locatadd_nm", "locathigh_cd", "locallow_nm", "adpt_de",
}

// RegionFinalHeader keeps just the (code, name) pair the processors use.
var RegionFinalHeader = []string{"region_cd", "region_nm"}

// RegionOptions configures NewRegionCollector.
type RegionOptions struct {
	URL        string
	ServiceKey string
	PageSize   int
	Delay      time.Duration
	Timeout    time.Duration
	Retry      httputil.RetryPolicy

	EnableTrace bool
}

// RegionCollector pages through the legal-division code registry.
type RegionCollector struct {
	opts RegionOptions
	http *http.Client
}

func NewRegionCollector(opts RegionOptions) (*RegionCollector, error) {
	hc, err := httputil.NewClient(httputil.ClientOptions{
		Timeout:     opts.Timeout,
		EnableTrace: opts.EnableTrace,
	})
	if err != nil {
		return nil, err
	}

	return &RegionCollector{opts: opts, http: hc}, nil
}

// The registry wraps its payload in a two-element array: head metadata first,
// rows second.
type regionEnvelope struct {
	StanReginCd []json.RawMessage `json:"StanReginCd"`
	CmmMsgHeader *struct {
		ErrMsg string `json:"errMsg"`
	} `json:"cmmMsgHeader"`
}

type regionHead struct {
	Head []struct {
		TotalCount *json.Number `json:"totalCount"`
		Result     *struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"RESULT"`
	} `json:"head"`
}

type regionRows struct {
	Row []struct {
		RegionCd    string `json:"region_cd"`
		LocataddNm  string `json:"locatadd_nm"`
		LocathighCd string `json:"locathigh_cd"`
		LocallowNm  string `json:"locallow_nm"`
		AdptDe      string `json:"adpt_de"`
	} `json:"row"`
}

// Collect fetches every page of the code list and returns the raw frame.
func (c *RegionCollector) Collect(ctx context.Context) (Frame, *Metrics, error) {
	frame := Frame{Header: RegionRawHeader}
	metrics := &Metrics{}

	for page := 1; ; page++ {
		rows, total, resultCode, err := c.fetchPage(ctx, page)
		if err != nil {
			return Frame{}, metrics, fmt.Errorf("fetching region codes page %d: %w", page, err)
		}

		metrics.Pages++

		if len(rows) == 0 || resultCode == "INFO-200" {
			if page == 1 {
				log.Printf("Region code registry returned no rows")
			}

			break
		}

		frame.Rows = append(frame.Rows, rows...)
		metrics.Records = len(frame.Rows)

		if len(frame.Rows) >= total || len(rows) < c.opts.PageSize {
			break
		}

		if page >= maxPages {
			log.Printf("Region codes: page ceiling reached at %d, stopping", page)

			break
		}

		sleep(ctx, c.opts.Delay)
	}

	return frame, metrics, nil
}

func (c *RegionCollector) fetchPage(ctx context.Context, page int) (rows [][]string, total int, resultCode string, err error) {
	q := url.Values{
		"ServiceKey": {c.opts.ServiceKey},
		"type":       {"json"},
		"pageNo":     {strconv.Itoa(page)},
		"numOfRows":  {strconv.Itoa(c.opts.PageSize)},
		"flag":       {"Y"},
	}

	var envelope regionEnvelope

	err = c.opts.Retry.Do(ctx, func() error {
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

		envelope = regionEnvelope{}

		return json.NewDecoder(resp.Body).Decode(&envelope)
	})
	if err != nil {
		return nil, 0, "", err
	}

	if envelope.CmmMsgHeader != nil {
		return nil, 0, "", fmt.Errorf("registry error: %s", envelope.CmmMsgHeader.ErrMsg)
	}

	if len(envelope.StanReginCd) < 2 {
		return nil, 0, "", fmt.Errorf("unexpected envelope with %d sections", len(envelope.StanReginCd))
	}

	var head regionHead
	if err := json.Unmarshal(envelope.StanReginCd[0], &head); err != nil {
		return nil, 0, "", fmt.Errorf("decoding head: %w", err)
	}

	for _, h := range head.Head {
		if h.TotalCount != nil {
			n, _ := h.TotalCount.Int64()
			total = int(n)
		}

		if h.Result != nil {
			resultCode = h.Result.ResultCode

			switch resultCode {
			case "INFO-0", "INFO-200", "0":
			default:
				return nil, 0, "", fmt.Errorf("registry result [%s] %s", resultCode, h.Result.ResultMsg)
			}
		}
	}

	var body regionRows
	if err := json.Unmarshal(envelope.StanReginCd[1], &body); err != nil {
		return nil, 0, "", fmt.Errorf("decoding rows: %w", err)
	}

	for _, r := range body.Row {
		rows = append(rows, []string{
			r.RegionCd, r.LocataddNm, r.LocathighCd, r.LocallowNm, r.AdptDe,
		})
	}

	return rows, total, resultCode, nil
}

// FinalizeRegions reduces a raw region frame to the (code, name) table.
func FinalizeRegions(raw Frame) (Frame, error) {
	cols, err := raw.RequireCols("region_cd", "locatadd_nm")
	if err != nil {
		return Frame{}, fmt.Errorf("finalizing region codes: %w", err)
	}

	final := Frame{Header: RegionFinalHeader, Rows: make([][]string, 0, len(raw.Rows))}

	for _, row := range raw.Rows {
		final.Rows = append(final.Rows, []string{
			raw.Get(row, cols[0]), raw.Get(row, cols[1]),
		})
	}

	return final, nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
