// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package collect

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// CompanyRawHeader is the raw snapshot column set for corporate registry
// rows: identity from the code list, the rest from per-company detail
// lookups. Detail columns stay empty when the lookup failed.
var CompanyRawHeader = []string{
	"corp_code", "corp_name", "corp_name_eng", "stock_code",
	"ceo_nm", "corp_cls", "jurir_no", "bizr_no", "adres",
	"hm_url", "ir_url", "phn_no", "fax_no",
	"induty_code", "est_dt", "acc_mt",
}

const corpCodeArchiveEntry = "CORPCODE.xml"

// CompanyOptions configures NewCompanyCollector.
type CompanyOptions struct {
	BaseURL string
	APIKey  string
	Workers int
	Delay   time.Duration
	Timeout time.Duration
	Retry   httputil.RetryPolicy

	EnableTrace bool
}

// CompanyCollector downloads the full corporate code archive and fans out
// per-company detail lookups on a bounded pool.
type CompanyCollector struct {
	opts CompanyOptions
	http *http.Client
}

func NewCompanyCollector(opts CompanyOptions) (*CompanyCollector, error) {
	hc, err := httputil.NewClient(httputil.ClientOptions{
		Timeout:     opts.Timeout,
		EnableTrace: opts.EnableTrace,
	})
	if err != nil {
		return nil, err
	}

	return &CompanyCollector{opts: opts, http: hc}, nil
}

// corpEntry is one company from the code archive.
type corpEntry struct {
	CorpCode   string `xml:"corp_code"`
	CorpName   string `xml:"corp_name"`
	StockCode  string `xml:"stock_code"`
	ModifyDate string `xml:"modify_date"`
}

type corpCodeList struct {
	List []corpEntry `xml:"list"`
}

type companyDetail struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	CorpName    string `json:"corp_name"`
	CorpNameEng string `json:"corp_name_eng"`
	StockCode   string `json:"stock_code"`
	CeoNm       string `json:"ceo_nm"`
	CorpCls     string `json:"corp_cls"`
	JurirNo     string `json:"jurir_no"`
	BizrNo      string `json:"bizr_no"`
	Adres       string `json:"adres"`
	HmURL       string `json:"hm_url"`
	IrURL       string `json:"ir_url"`
	PhnNo       string `json:"phn_no"`
	FaxNo       string `json:"fax_no"`
	IndutyCode  string `json:"induty_code"`
	EstDt       string `json:"est_dt"`
	AccMt       string `json:"acc_mt"`
}

type detailFailure struct {
	corpCode string
	corpName string
	status   string
	message  string
}

// Collect downloads the code archive, keeps listed companies only, and
// resolves each one's detail record. Row order follows the archive.
func (c *CompanyCollector) Collect(ctx context.Context) (Frame, *Metrics, error) {
	metrics := &Metrics{}

	listed, err := c.downloadCorpCodes(ctx)
	if err != nil {
		return Frame{}, metrics, err
	}

	log.Printf("Corporate registry: %d listed companies", len(listed))

	metrics.Records = len(listed)

	rows, detailMetrics, failures := c.collectDetails(ctx, listed)
	metrics.Merge(detailMetrics)

	reportDetailFailures(failures)

	return Frame{Header: CompanyRawHeader, Rows: rows}, metrics, nil
}

// downloadCorpCodes fetches the ZIP archive and keeps companies with a stock
// code, the marker for a listed company.
func (c *CompanyCollector) downloadCorpCodes(ctx context.Context) ([]corpEntry, error) {
	q := url.Values{"crtfc_key": {c.opts.APIKey}}
	reqURL := c.opts.BaseURL + "/corpCode.xml?" + q.Encode()

	var payload []byte

	err := c.opts.Retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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

		payload, err = io.ReadAll(resp.Body)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("downloading corporate code archive: %w", err)
	}

	// The registry answers errors with an XML document instead of a ZIP.
	if !bytes.HasPrefix(payload, []byte("PK")) {
		sample := payload
		if len(sample) > 200 {
			sample = sample[:200]
		}

		return nil, fmt.Errorf("corporate registry did not return an archive: %q", sample)
	}

	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("opening corporate code archive: %w", err)
	}

	var doc io.ReadCloser

	for _, f := range zr.File {
		if f.Name == corpCodeArchiveEntry {
			doc, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", corpCodeArchiveEntry, err)
			}

			break
		}
	}

	if doc == nil {
		return nil, fmt.Errorf("archive has no %s entry", corpCodeArchiveEntry)
	}

	defer func() { _ = doc.Close() }()

	var list corpCodeList
	if err := xml.NewDecoder(doc).Decode(&list); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", corpCodeArchiveEntry, err)
	}

	var listed []corpEntry

	for _, e := range list.List {
		if strings.TrimSpace(e.StockCode) != "" {
			e.StockCode = strings.TrimSpace(e.StockCode)
			listed = append(listed, e)
		}
	}

	return listed, nil
}

func (c *CompanyCollector) collectDetails(ctx context.Context, listed []corpEntry) ([][]string, *Metrics, []detailFailure) {
	n := len(listed)
	metrics := &Metrics{}

	workers := c.opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("Fetching company details"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	type indexedRow struct {
		idx int
		row []string
		ok  bool
	}

	var wg sync.WaitGroup

	semaphore := make(chan struct{}, workers)
	rowChan := make(chan indexedRow, n)
	failChan := make(chan detailFailure, n)

	for i, entry := range listed {
		wg.Add(1)

		go func(i int, entry corpEntry) {
			defer wg.Done()
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			row, failure := c.detailRow(ctx, entry)
			rowChan <- indexedRow{idx: i, row: row, ok: failure == nil}

			if failure != nil {
				failChan <- *failure
			}

			if bar != nil {
				_ = bar.Add(1)
			}

			sleep(ctx, c.opts.Delay)
		}(i, entry)
	}

	wg.Wait()
	close(rowChan)
	close(failChan)

	rows := make([][]string, n)

	for r := range rowChan {
		rows[r.idx] = r.row

		if r.ok {
			metrics.DetailSuccess++
		} else {
			metrics.DetailFailed++
		}
	}

	var failures []detailFailure
	for f := range failChan {
		failures = append(failures, f)
	}

	return rows, metrics, failures
}

// detailRow resolves one company's detail record. A failed lookup still
// yields a row, with the identity columns from the archive and empty detail
// fields.
func (c *CompanyCollector) detailRow(ctx context.Context, entry corpEntry) ([]string, *detailFailure) {
	detail, err := c.fetchDetail(ctx, entry.CorpCode)

	switch {
	case err != nil:
		return emptyDetailRow(entry), &detailFailure{
			corpCode: entry.CorpCode,
			corpName: entry.CorpName,
			status:   "NO_RESPONSE",
			message:  err.Error(),
		}
	case detail.Status != "000":
		return emptyDetailRow(entry), &detailFailure{
			corpCode: entry.CorpCode,
			corpName: entry.CorpName,
			status:   detail.Status,
			message:  detail.Message,
		}
	}

	return []string{
		entry.CorpCode, detail.CorpName, detail.CorpNameEng, detail.StockCode,
		detail.CeoNm, detail.CorpCls, detail.JurirNo, detail.BizrNo, detail.Adres,
		detail.HmURL, detail.IrURL, detail.PhnNo, detail.FaxNo,
		detail.IndutyCode, detail.EstDt, detail.AccMt,
	}, nil
}

func emptyDetailRow(entry corpEntry) []string {
	row := make([]string, len(CompanyRawHeader))
	row[0] = entry.CorpCode
	row[1] = entry.CorpName
	row[3] = entry.StockCode

	return row
}

func (c *CompanyCollector) fetchDetail(ctx context.Context, corpCode string) (*companyDetail, error) {
	q := url.Values{
		"crtfc_key": {c.opts.APIKey},
		"corp_code": {corpCode},
	}

	var detail companyDetail

	err := c.opts.Retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/company.json?"+q.Encode(), nil)
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

		detail = companyDetail{}

		return json.NewDecoder(resp.Body).Decode(&detail)
	})
	if err != nil {
		return nil, err
	}

	return &detail, nil
}

const failureSampleSize = 10

func reportDetailFailures(failures []detailFailure) {
	if len(failures) == 0 {
		return
	}

	counts := map[string]int{}
	for _, f := range failures {
		counts[f.status]++
	}

	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return counts[statuses[i]] > counts[statuses[j]]
	})

	for _, s := range statuses {
		log.Printf("Company detail failures: status %s x%d", s, counts[s])
	}

	for i, f := range failures {
		if i == failureSampleSize {
			log.Printf("... %d more detail failures", len(failures)-failureSampleSize)

			break
		}

		log.Printf("  %s (%s): [%s] %s", f.corpName, f.corpCode, f.status, f.message)
	}
}
