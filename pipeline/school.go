// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/collect"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/geocode"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/snapshot"
)

// SchoolFinalHeader is the final school snapshot column set, shared by high
// schools and universities.
var SchoolFinalHeader = []string{
	"fac_cd", "fac_nm",
	"ctp_cd", "ctp_nm", "sig_cd", "sig_nm", "emd_cd", "emd_nm",
	"all_addr_nm", "lat", "lon",
}

// RunSchools runs the high school and university steps.
func (p *Pipeline) RunSchools(ctx context.Context) []StepResult {
	return []StepResult{
		p.runSchool(ctx, DatasetHighSchools, collect.KindHighSchool, p.cfg.Providers.HighSchoolURL),
		p.runSchool(ctx, DatasetUniversities, collect.KindUniversity, p.cfg.Providers.UniversityURL),
	}
}

func (p *Pipeline) runSchool(ctx context.Context, dataset string, kind collect.SchoolKind, url string) StepResult {
	stepKind := StepOK

	raw, err := p.collectSchools(ctx, dataset, kind, url)
	if err != nil {
		log.Printf("Collection of %s failed, trying latest raw snapshot: %v", dataset, err)

		raw, err = p.loadLatestRaw(dataset)
		if err != nil {
			return StepResult{Name: dataset, Kind: StepFailed, Err: err}
		}

		stepKind = StepFallback
	} else if !p.cfg.DryRun {
		if _, err := p.saveFrame(dataset, snapshot.StageRaw, raw); err != nil {
			return StepResult{Name: dataset, Kind: StepFailed, Err: err}
		}
	}

	final, err := p.buildSchoolFinal(ctx, raw, kind)
	if err != nil {
		return StepResult{Name: dataset, Kind: StepFailed, Err: err}
	}

	if !p.cfg.DryRun {
		if _, err := p.saveFrame(dataset, snapshot.StageFinal, final); err != nil {
			return StepResult{Name: dataset, Kind: StepFailed, Err: err}
		}
	}

	return StepResult{Name: dataset, Kind: stepKind}
}

func (p *Pipeline) collectSchools(ctx context.Context, dataset string, kind collect.SchoolKind, url string) (collect.Frame, error) {
	collector, err := collect.NewSchoolCollector(collect.SchoolOptions{
		URL:         url,
		ServiceKey:  p.cfg.Providers.SchoolKey,
		Kind:        kind,
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
		return collect.Frame{}, fmt.Errorf("%s: %w", dataset, errNoRows)
	}

	log.Printf("%s: %d records from %d pages", dataset, metrics.Records, metrics.Pages)

	return frame, nil
}

// buildSchoolFinal reverse-geocodes each facility's coordinates into its
// administrative region and assembles the final column set. University rows
// for graduate schools are excluded first.
func (p *Pipeline) buildSchoolFinal(ctx context.Context, raw collect.Frame, kind collect.SchoolKind) (collect.Frame, error) {
	cols, err := raw.RequireCols("fac_cd", "fac_nm", "all_addr_nm", "lat", "lon")
	if err != nil {
		return collect.Frame{}, fmt.Errorf("building school snapshot: %w", err)
	}

	facCol, nameCol, addrCol, latCol, lonCol := cols[0], cols[1], cols[2], cols[3], cols[4]

	rows := raw.Rows

	if kind == collect.KindUniversity {
		kept := rows[:0:0]

		for _, row := range rows {
			if !strings.Contains(raw.Get(row, nameCol), "대학원") {
				kept = append(kept, row)
			}
		}

		if excluded := len(rows) - len(kept); excluded > 0 {
			log.Printf("Excluded %d graduate schools (%d remain)", excluded, len(kept))
		}

		rows = kept
	}

	regions := p.reverseGeocodeRows(ctx, raw, rows, latCol, lonCol)

	final := collect.Frame{Header: SchoolFinalHeader, Rows: make([][]string, 0, len(rows))}
	matched := 0

	for i, row := range rows {
		var ctpCd, ctpNm, sigCd, sigNm, emdCd, emdNm string

		if r := regions[i]; r != nil {
			matched++
			ctpNm, sigNm, emdNm = DedupRegionNames(r.ProvinceName, r.DistrictName, r.SubDistrictName)
			ctpCd = integerString(r.ProvinceCode)
			sigCd = integerString(r.DistrictCode)
			emdCd = integerString(r.SubDistrictCode)
		}

		final.Rows = append(final.Rows, []string{
			integerString(raw.Get(row, facCol)), raw.Get(row, nameCol),
			ctpCd, ctpNm, sigCd, sigNm, emdCd, emdNm,
			raw.Get(row, addrCol),
			roundCoord(raw.Get(row, latCol)), roundCoord(raw.Get(row, lonCol)),
		})
	}

	log.Printf("Schools enriched: %d/%d regions resolved", matched, len(rows))

	return final, nil
}

func (p *Pipeline) reverseGeocodeRows(ctx context.Context, raw collect.Frame, rows [][]string, latCol, lonCol int) []*geocode.Region {
	regions := make([]*geocode.Region, len(rows))

	runPool("Reverse geocoding", len(rows), p.cfg.Tuning.GeocodeWorkers, func(i int) {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(raw.Get(rows[i], latCol)), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(raw.Get(rows[i], lonCol)), 64)

		if errLat != nil || errLon != nil {
			return
		}

		if region, ok := p.geocoder.Region(ctx, lon, lat); ok {
			regions[i] = region
		}

		sleep(ctx, p.cfg.Tuning.RequestDelay)
	})

	return regions
}
