// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package collect

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/spatial"
)

// SchoolRawHeader is the raw snapshot column set for school facilities.
var SchoolRawHeader = []string{"fac_cd", "fac_nm", "all_addr_nm", "lat", "lon"}

// SchoolKind selects which facility feed a SchoolCollector consumes.
type SchoolKind int

const (
	// KindHighSchool reads the general school feed and keeps high schools.
	KindHighSchool SchoolKind = iota
	// KindUniversity reads the university feed. The feed carries no stable
	// facility code, so sequential ones are synthesized.
	KindUniversity
)

const (
	schoolPageSize = 100

	// First synthesized facility code for universities.
	universityFacCdStart = 502040
)

// SchoolOptions configures NewSchoolCollector.
type SchoolOptions struct {
	URL        string
	ServiceKey string
	Kind       SchoolKind
	Delay      time.Duration
	Timeout    time.Duration
	Retry      httputil.RetryPolicy

	EnableTrace bool
}

// SchoolCollector pages through a facility XML feed and converts its
// Web-Mercator coordinates to WGS84.
type SchoolCollector struct {
	opts SchoolOptions
	http *http.Client
}

func NewSchoolCollector(opts SchoolOptions) (*SchoolCollector, error) {
	hc, err := httputil.NewClient(httputil.ClientOptions{
		Timeout:     opts.Timeout,
		EnableTrace: opts.EnableTrace,
	})
	if err != nil {
		return nil, err
	}

	return &SchoolCollector{opts: opts, http: hc}, nil
}

type schoolResponse struct {
	Header struct {
		ResultCode string `xml:"resultCode"`
		ResultMsg  string `xml:"resultMsg"`
	} `xml:"header"`
	Items []schoolItem `xml:"body>items>item"`
}

type schoolItem struct {
	FacCd   string `xml:"fac_cd"`
	FcltyNm string `xml:"fclty_nm"`
	Adres   string `xml:"adres"`
	RnAdres string `xml:"rn_adres"`
	X       string `xml:"x"`
	Y       string `xml:"y"`
}

// Collect fetches every page of the feed. A page shorter than the fixed page
// size is the last one.
func (c *SchoolCollector) Collect(ctx context.Context) (Frame, *Metrics, error) {
	frame := Frame{Header: SchoolRawHeader}
	metrics := &Metrics{}
	facCd := universityFacCdStart

	for page := 1; ; page++ {
		items, err := c.fetchPage(ctx, page)
		if err != nil {
			return Frame{}, metrics, fmt.Errorf("fetching school facilities page %d: %w", page, err)
		}

		metrics.Pages++

		if len(items) == 0 {
			break
		}

		for _, item := range items {
			row, keep := c.itemRow(item, &facCd)
			if keep {
				frame.Rows = append(frame.Rows, row)
			}
		}

		metrics.Records = len(frame.Rows)

		if len(items) < schoolPageSize {
			break
		}

		if page >= maxPages {
			log.Printf("School facilities: page ceiling reached at %d, stopping", page)

			break
		}

		sleep(ctx, c.opts.Delay)
	}

	return frame, metrics, nil
}

func (c *SchoolCollector) itemRow(item schoolItem, facCd *int) ([]string, bool) {
	name := strings.TrimSpace(item.FcltyNm)

	// The general feed mixes all school levels.
	if c.opts.Kind == KindHighSchool && !strings.Contains(name, "고등학교") {
		return nil, false
	}

	// Road address when present, lot address otherwise.
	addr := strings.TrimSpace(item.RnAdres)
	if addr == "" {
		addr = strings.TrimSpace(item.Adres)
	}

	var latStr, lonStr string

	x, errX := strconv.ParseFloat(strings.TrimSpace(item.X), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(item.Y), 64)

	if errX == nil && errY == nil {
		lon, lat := spatial.WebMercatorToWGS84(x, y)

		// Some feed rows carry plain degrees in the Mercator fields;
		// conversion puts those far outside the peninsula.
		if (spatial.Point{Lat: lat, Lon: lon}).Valid() {
			latStr = strconv.FormatFloat(lat, 'f', -1, 64)
			lonStr = strconv.FormatFloat(lon, 'f', -1, 64)
		}
	}

	code := strings.TrimSpace(item.FacCd)
	if c.opts.Kind == KindUniversity {
		code = strconv.Itoa(*facCd)
		*facCd++
	}

	return []string{code, name, addr, latStr, lonStr}, true
}

func (c *SchoolCollector) fetchPage(ctx context.Context, page int) ([]schoolItem, error) {
	q := url.Values{
		"serviceKey": {c.opts.ServiceKey},
		"pageNo":     {strconv.Itoa(page)},
		"numOfRows":  {strconv.Itoa(schoolPageSize)},
		"returnType": {"XML"},
	}

	var body schoolResponse

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

		body = schoolResponse{}

		return xml.NewDecoder(resp.Body).Decode(&body)
	})
	if err != nil {
		return nil, err
	}

	if body.Header.ResultCode != "" && body.Header.ResultCode != "00" {
		return nil, fmt.Errorf("facility feed result [%s] %s", body.Header.ResultCode, body.Header.ResultMsg)
	}

	return body.Items, nil
}
