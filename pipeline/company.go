// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/collect"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/geocode"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/industry"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/snapshot"
)

// CompanyFinalHeader is the final company snapshot column set.
var CompanyFinalHeader = []string{
	"corp_cd", "corp_nm",
	"ctp_cd", "ctp_nm", "sig_cd", "sig_nm", "emd_cd", "emd_nm",
	"all_addr_nm", "lon", "lat",
	"corp_depth1_cd", "corp_depth1",
	"corp_depth2_cd", "corp_depth2",
	"corp_depth3_cd", "corp_depth3",
	"corp_depth4_cd", "corp_depth4",
	"corp_depth5_cd", "corp_depth5",
}

// RunCompany collects the corporate registry and enriches it into the final
// company snapshot: coordinates, administrative regions, and the industry
// chain.
func (p *Pipeline) RunCompany(ctx context.Context) StepResult {
	kind := StepOK

	raw, err := p.collectCompanies(ctx)
	if err != nil {
		log.Printf("Collection of %s failed, trying latest raw snapshot: %v", DatasetCompanies, err)

		raw, err = p.loadLatestRaw(DatasetCompanies)
		if err != nil {
			return StepResult{Name: DatasetCompanies, Kind: StepFailed, Err: err}
		}

		kind = StepFallback
	} else if !p.cfg.DryRun {
		if _, err := p.saveFrame(DatasetCompanies, snapshot.StageRaw, raw); err != nil {
			return StepResult{Name: DatasetCompanies, Kind: StepFailed, Err: err}
		}
	}

	final, err := p.buildCompanyFinal(ctx, raw)
	if err != nil {
		return StepResult{Name: DatasetCompanies, Kind: StepFailed, Err: err}
	}

	if !p.cfg.DryRun {
		if _, err := p.saveFrame(DatasetCompanies, snapshot.StageFinal, final); err != nil {
			return StepResult{Name: DatasetCompanies, Kind: StepFailed, Err: err}
		}
	}

	return StepResult{Name: DatasetCompanies, Kind: kind}
}

func (p *Pipeline) collectCompanies(ctx context.Context) (collect.Frame, error) {
	collector, err := collect.NewCompanyCollector(collect.CompanyOptions{
		BaseURL:     p.cfg.Providers.RegistryBaseURL,
		APIKey:      p.cfg.Providers.RegistryKey,
		Workers:     p.cfg.Tuning.RegistryWorkers,
		Delay:       p.cfg.Tuning.RequestDelay,
		Timeout:     p.cfg.Tuning.HTTPTimeout,
		Retry:       p.cfg.RetryPolicy(),
		EnableTrace: p.cfg.HTTPTrace,
	})
	if err != nil {
		return collect.Frame{}, err
	}

	frame, metrics, err := collector.Collect(ctx)
	if err != nil {
		return collect.Frame{}, err
	}

	if len(frame.Rows) == 0 {
		return collect.Frame{}, fmt.Errorf("%s: %w", DatasetCompanies, errNoRows)
	}

	log.Printf("Companies: %d records, %d details resolved, %d failed",
		metrics.Records, metrics.DetailSuccess, metrics.DetailFailed)

	return frame, nil
}

// geoResult is one row's geocoding outcome, slot-indexed to preserve order.
type geoResult struct {
	lon, lat string
	region   *geocode.Region
}

func (p *Pipeline) buildCompanyFinal(ctx context.Context, raw collect.Frame) (collect.Frame, error) {
	cols, err := raw.RequireCols("corp_code", "corp_name", "adres", "induty_code")
	if err != nil {
		return collect.Frame{}, fmt.Errorf("building company snapshot: %w", err)
	}

	corpCol, nameCol, addrCol, indutyCol := cols[0], cols[1], cols[2], cols[3]

	hierarchy := p.loadHierarchy()
	results := p.geocodeAddresses(ctx, raw, addrCol)

	final := collect.Frame{Header: CompanyFinalHeader, Rows: make([][]string, 0, len(raw.Rows))}

	regionMatched, coordMatched, industryMatched := 0, 0, 0

	for i, row := range raw.Rows {
		r := results[i]

		var ctpCd, ctpNm, sigCd, sigNm, emdCd, emdNm string

		if r.lon != "" {
			coordMatched++
		}

		if r.region != nil {
			regionMatched++
			ctpNm, sigNm, emdNm = DedupRegionNames(
				r.region.ProvinceName, r.region.DistrictName, r.region.SubDistrictName)
			ctpCd = integerString(r.region.ProvinceCode)
			sigCd = integerString(r.region.DistrictCode)
			emdCd = integerString(r.region.SubDistrictCode)
		}

		var chain industry.Chain

		if code := raw.Get(row, indutyCol); code != "" {
			if c, ok := hierarchy.Lookup(code); ok {
				chain = c
				industryMatched++
			}
		}

		final.Rows = append(final.Rows, []string{
			integerString(raw.Get(row, corpCol)), raw.Get(row, nameCol),
			ctpCd, ctpNm, sigCd, sigNm, emdCd, emdNm,
			raw.Get(row, addrCol), roundCoord(r.lon), roundCoord(r.lat),
			chain.Depth1Code, chain.Depth1Name,
			integerString(chain.Depth2Code), chain.Depth2Name,
			integerString(chain.Depth3Code), chain.Depth3Name,
			integerString(chain.Depth4Code), chain.Depth4Name,
			integerString(chain.Depth5Code), chain.Depth5Name,
		})
	}

	total := len(raw.Rows)
	log.Printf("Companies enriched: %d/%d coordinates, %d/%d regions, %d/%d industry chains",
		coordMatched, total, regionMatched, total, industryMatched, total)

	return final, nil
}

// geocodeAddresses resolves coordinates and regions for every row with an
// address: raw address first, cleaned address only when cleaning changed it.
func (p *Pipeline) geocodeAddresses(ctx context.Context, raw collect.Frame, addrCol int) []geoResult {
	results := make([]geoResult, len(raw.Rows))

	runPool("Geocoding addresses", len(raw.Rows), p.cfg.Tuning.GeocodeWorkers, func(i int) {
		addr := strings.TrimSpace(raw.Get(raw.Rows[i], addrCol))
		if addr == "" {
			return
		}

		lon, lat, ok := p.geocoder.Coordinates(ctx, addr)

		if !ok {
			if cleaned := geocode.CleanAddress(addr); cleaned != addr && cleaned != "" {
				lon, lat, ok = p.geocoder.Coordinates(ctx, cleaned)
			}
		}

		if !ok {
			return
		}

		results[i].lon = strconv.FormatFloat(lon, 'f', -1, 64)
		results[i].lat = strconv.FormatFloat(lat, 'f', -1, 64)

		if region, ok := p.geocoder.Region(ctx, lon, lat); ok {
			results[i].region = region
		}

		sleep(ctx, p.cfg.Tuning.RequestDelay)
	})

	return results
}

// loadHierarchy loads the industry chain table from the latest final
// snapshot. A missing snapshot degrades to an empty hierarchy.
func (p *Pipeline) loadHierarchy() *industry.Hierarchy {
	frame, err := p.loadLatestFinal(DatasetIndustryCodes)
	if err != nil {
		log.Printf("No industry code snapshot, companies will carry no industry chain: %v", err)

		return industry.FromChains(nil)
	}

	chains := make([]industry.Chain, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		chains = append(chains, industry.ChainFromRow(row))
	}

	return industry.FromChains(chains)
}

// integerString normalizes a numeric code to its plain integer form:
// "42209.0" and "042209" both become "42209". Non-numeric values pass
// through untouched.
func integerString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}

	return strconv.FormatInt(int64(f), 10)
}

// roundCoord limits a coordinate string to 10 decimals.
func roundCoord(s string) string {
	if s == "" {
		return ""
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}

	return strconv.FormatFloat(math.Round(f*1e10)/1e10, 'f', -1, 64)
}
