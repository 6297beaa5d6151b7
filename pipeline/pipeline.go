// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline sequences collection and enrichment so that a final
// snapshot exists for every dataset whenever any raw collection ever
// succeeded. Steps report typed results; the orchestrator logs and keeps
// going.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/collect"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/config"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/geocode"
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/snapshot"
)

// Dataset names used for snapshot files.
const (
	DatasetRegionCodes   = "region_codes"
	DatasetIndustryCodes = "industry_codes"
	DatasetCompanies     = "company_places"
	DatasetHighSchools   = "high_school_places"
	DatasetUniversities  = "university_places"
)

// StepKind classifies how a pipeline step ended.
type StepKind int

const (
	// StepOK means fresh data was collected and processed.
	StepOK StepKind = iota
	// StepFallback means collection failed but the latest raw snapshot was
	// processed instead.
	StepFallback
	// StepFailed means neither collection nor fallback produced data.
	StepFailed
)

func (k StepKind) String() string {
	switch k {
	case StepOK:
		return "ok"
	case StepFallback:
		return "fallback"
	default:
		return "failed"
	}
}

// StepResult is the outcome of one pipeline step.
type StepResult struct {
	Name string
	Kind StepKind
	Err  error
}

// Pipeline wires the collectors, the geocoder, and the snapshot store.
type Pipeline struct {
	cfg      *config.Config
	store    *snapshot.Store
	geocoder *geocode.Client
}

// New builds a Pipeline. The geocoder is constructed here so every step
// shares its cache.
func New(cfg *config.Config, store *snapshot.Store) (*Pipeline, error) {
	var cache geocode.Cache
	if cfg.RedisAddr != "" {
		cache = geocode.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.Tuning.CacheTTL)
	}

	geocoder, err := geocode.New(geocode.Options{
		BaseURL:     cfg.Providers.GeocodeBaseURL,
		APIKey:      cfg.Providers.GeocodeKey,
		Timeout:     cfg.Tuning.HTTPTimeout,
		Retry:       cfg.RetryPolicy(),
		Cache:       cache,
		EnableTrace: cfg.HTTPTrace,
	})
	if err != nil {
		return nil, fmt.Errorf("building geocoder: %w", err)
	}

	return &Pipeline{cfg: cfg, store: store, geocoder: geocoder}, nil
}

// Run executes the full pipeline: reference codes, then companies, then
// schools. Failures never abort the run.
func (p *Pipeline) Run(ctx context.Context) []StepResult {
	var results []StepResult

	results = append(results, p.RunReference(ctx)...)
	results = append(results, p.RunCompany(ctx))
	results = append(results, p.RunSchools(ctx)...)

	for _, r := range results {
		if r.Err != nil {
			log.Printf("Step %s: %s - %v", r.Name, r.Kind, r.Err)
		} else {
			log.Printf("Step %s: %s", r.Name, r.Kind)
		}
	}

	return results
}

// RunReference collects the region and industry code lists.
func (p *Pipeline) RunReference(ctx context.Context) []StepResult {
	return []StepResult{
		p.runRegionCodes(ctx),
		p.runIndustryCodes(ctx),
	}
}

func (p *Pipeline) runRegionCodes(ctx context.Context) StepResult {
	collector, err := collect.NewRegionCollector(collect.RegionOptions{
		URL:         p.cfg.Providers.RegionCodeURL,
		ServiceKey:  p.cfg.Providers.RegionCodeKey,
		PageSize:    p.cfg.Tuning.PageSize,
		Delay:       p.cfg.Tuning.RequestDelay,
		Timeout:     p.cfg.Tuning.HTTPTimeout,
		Retry:       p.cfg.RetryPolicy(),
		EnableTrace: p.cfg.HTTPTrace,
	})
	if err != nil {
		return StepResult{Name: DatasetRegionCodes, Kind: StepFailed, Err: err}
	}

	return p.collectAndFinalize(ctx, DatasetRegionCodes,
		func(ctx context.Context) (collect.Frame, error) {
			frame, metrics, err := collector.Collect(ctx)
			if err == nil {
				log.Printf("Region codes: %d records from %d pages", metrics.Records, metrics.Pages)
			}

			return frame, err
		},
		collect.FinalizeRegions,
	)
}

func (p *Pipeline) runIndustryCodes(ctx context.Context) StepResult {
	collector, err := collect.NewIndustryCollector(collect.IndustryOptions{
		URL:         p.cfg.Providers.IndustryCodeURL,
		ServiceKey:  p.cfg.Providers.IndustryCodeKey,
		PageSize:    p.cfg.Tuning.PageSize,
		Delay:       p.cfg.Tuning.RequestDelay,
		Timeout:     p.cfg.Tuning.HTTPTimeout,
		Retry:       p.cfg.RetryPolicy(),
		EnableTrace: p.cfg.HTTPTrace,
	})
	if err != nil {
		return StepResult{Name: DatasetIndustryCodes, Kind: StepFailed, Err: err}
	}

	return p.collectAndFinalize(ctx, DatasetIndustryCodes,
		func(ctx context.Context) (collect.Frame, error) {
			frame, metrics, err := collector.Collect(ctx)
			if err == nil {
				log.Printf("Industry codes: %d records from %d pages", metrics.Records, metrics.Pages)
			}

			return frame, err
		},
		collect.FinalizeIndustry,
	)
}

// collectAndFinalize runs the collect, save-raw, finalize, save-final
// sequence with fallback to the latest raw snapshot when collection fails.
func (p *Pipeline) collectAndFinalize(
	ctx context.Context,
	dataset string,
	collectFn func(context.Context) (collect.Frame, error),
	finalizeFn func(collect.Frame) (collect.Frame, error),
) StepResult {
	kind := StepOK

	raw, err := collectFn(ctx)

	switch {
	case err == nil && len(raw.Rows) == 0:
		err = fmt.Errorf("%s: collection returned no rows", dataset)

		fallthrough
	case err != nil:
		log.Printf("Collection of %s failed, trying latest raw snapshot: %v", dataset, err)

		raw, err = p.loadLatestRaw(dataset)
		if err != nil {
			return StepResult{Name: dataset, Kind: StepFailed, Err: err}
		}

		kind = StepFallback
	default:
		if !p.cfg.DryRun {
			if _, err := p.saveFrame(dataset, snapshot.StageRaw, raw); err != nil {
				return StepResult{Name: dataset, Kind: StepFailed, Err: err}
			}
		}
	}

	final, err := finalizeFn(raw)
	if err != nil {
		return StepResult{Name: dataset, Kind: StepFailed, Err: err}
	}

	if !p.cfg.DryRun {
		if _, err := p.saveFrame(dataset, snapshot.StageFinal, final); err != nil {
			return StepResult{Name: dataset, Kind: StepFailed, Err: err}
		}
	}

	return StepResult{Name: dataset, Kind: kind}
}

func (p *Pipeline) saveFrame(dataset, stage string, frame collect.Frame) (string, error) {
	path, err := p.store.Save(dataset, stage, frame.Header, frame.Rows)
	if err != nil {
		return "", fmt.Errorf("saving %s/%s: %w", dataset, stage, err)
	}

	log.Printf("Saved %s/%s: %s (%d rows)", dataset, stage, path, len(frame.Rows))

	return path, nil
}

func (p *Pipeline) loadLatestRaw(dataset string) (collect.Frame, error) {
	path, err := p.store.Latest(dataset, snapshot.StageRaw)
	if err != nil {
		return collect.Frame{}, err
	}

	log.Printf("Using raw snapshot %s", path)

	header, rows, err := snapshot.ReadCSV(path, snapshot.EncodingUTF8)
	if err != nil {
		return collect.Frame{}, fmt.Errorf("reading %s: %w", path, err)
	}

	return collect.Frame{Header: header, Rows: rows}, nil
}

func (p *Pipeline) loadLatestFinal(dataset string) (collect.Frame, error) {
	path, err := p.store.Latest(dataset, snapshot.StageFinal)
	if err != nil {
		return collect.Frame{}, err
	}

	header, rows, err := snapshot.ReadCSV(path, snapshot.EncodingUTF8)
	if err != nil {
		return collect.Frame{}, fmt.Errorf("reading %s: %w", path, err)
	}

	return collect.Frame{Header: header, Rows: rows}, nil
}

// errNoRows marks steps whose input ended up empty after filtering.
var errNoRows = errors.New("no rows to process")
