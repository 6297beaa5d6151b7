// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

// Package config builds the single configuration object the pipeline runs
// with. It is constructed once at process start and passed by reference;
// nothing reads the environment after Load returns.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
)

// PlaceType discriminates the three indexed datasets.
type PlaceType string

// Place types recognized by the indexer and the matcher.
const (
	PlaceHighSchool PlaceType = "high_school"
	PlaceUniversity PlaceType = "university"
	PlaceCompany    PlaceType = "company"
)

// Providers holds the remote API endpoints and credentials.
type Providers struct {
	// Company registry (corp code list + per-company detail)
	RegistryBaseURL string
	RegistryKey     string

	// Address/coordinate geocoding and reverse geocoding
	GeocodeBaseURL string
	GeocodeKey     string

	// Administrative region code listing
	RegionCodeURL string
	RegionCodeKey string

	// Industry classification code listing
	IndustryCodeURL string
	IndustryCodeKey string

	// School facility listings
	HighSchoolURL string
	UniversityURL string
	SchoolKey     string
}

// Search holds the search backend connection settings.
type Search struct {
	URL       string // e.g. https://10.0.0.1:9200
	User      string
	Password  string
	CACert    string // path to the CA bundle, empty for plain http
	IndexName string
}

// Paths is the on-disk layout for snapshots and matcher artifacts.
type Paths struct {
	DataDir    string
	RawDir     string
	FinalDir   string
	DMPDir     string
	OutputDir  string
	RegistryDB string // DuckDB file backing the snapshot registry
}

// Tuning groups the batch/pool/retry knobs.
type Tuning struct {
	RetryAttempts int
	RetryDelay    time.Duration
	RequestDelay  time.Duration // inter-call delay against rate limits
	HTTPTimeout   time.Duration

	RegistryWorkers int // per-company detail lookups
	GeocodeWorkers  int // per-address geocoding
	MatchWorkers    int // per-batch search dispatch

	PageSize       int // collector page size
	IndexBatchSize int
	SearchBatch    int
	ChunkSize      int // matcher CSV chunk
	FlushInterval  int // matcher checkpoint threshold, in result rows

	CacheTTL time.Duration // geocode cache entry lifetime
}

// Config is the process-wide configuration.
type Config struct {
	Providers Providers
	Search    Search
	Paths     Paths
	Tuning    Tuning

	// RedisAddr enables the geocode result cache when non-empty.
	RedisAddr     string
	RedisPassword string

	// Radius is the per-place-type search radius.
	Radius map[PlaceType]string

	HTTPTrace bool
	DryRun    bool
}

// RetryPolicy returns the shared retry policy remote call sites use.
func (c *Config) RetryPolicy() httputil.RetryPolicy {
	return httputil.RetryPolicy{
		MaxAttempts: c.Tuning.RetryAttempts,
		Delay:       c.Tuning.RetryDelay,
	}
}

// DefaultRadius returns the radius string for a place type, falling back to
// 300m for unknown types the way the matcher always has.
func (c *Config) DefaultRadius(pt PlaceType) string {
	if r, ok := c.Radius[pt]; ok {
		return r
	}

	return "300m"
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}

	return def
}

// Load builds the Config from the environment, optionally seeded from a .env
// file. A missing .env file is not an error.
func Load(envFile, dataDir string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if dataDir == "" {
		dataDir = envString("JOBSEG_DATA_DIR", "data")
	}

	cfg := &Config{
		Providers: Providers{
			RegistryBaseURL: envString("REGISTRY_BASE_URL", "https://opendart.fss.or.kr/api"),
			RegistryKey:     os.Getenv("REGISTRY_API_KEY"),
			GeocodeBaseURL:  envString("GEOCODE_BASE_URL", "https://dapi.kakao.com/v2/local"),
			GeocodeKey:      os.Getenv("GEOCODE_API_KEY"),
			RegionCodeURL:   envString("REGION_CODE_URL", "https://apis.data.go.kr/1741000/StanReginCd/getStanReginCdList"),
			RegionCodeKey:   os.Getenv("REGION_CODE_API_KEY"),
			IndustryCodeURL: os.Getenv("INDUSTRY_CODE_URL"),
			IndustryCodeKey: envString("INDUSTRY_CODE_API_KEY", os.Getenv("REGION_CODE_API_KEY")),
			HighSchoolURL:   os.Getenv("SCHOOL_HIGH_URL"),
			UniversityURL:   os.Getenv("SCHOOL_UNIV_URL"),
			SchoolKey:       os.Getenv("SCHOOL_API_KEY"),
		},
		Search: Search{
			URL:       envString("SEARCH_URL", "http://127.0.0.1:9200"),
			User:      os.Getenv("SEARCH_USER"),
			Password:  os.Getenv("SEARCH_PASSWORD"),
			CACert:    os.Getenv("SEARCH_CA_CERT"),
			IndexName: envString("SEARCH_INDEX", "job-seg-places"),
		},
		Paths: Paths{
			DataDir:    dataDir,
			RawDir:     filepath.Join(dataDir, "raw"),
			FinalDir:   filepath.Join(dataDir, "final"),
			DMPDir:     filepath.Join(dataDir, "dmp"),
			OutputDir:  envString("JOBSEG_OUTPUT_DIR", "output"),
			RegistryDB: filepath.Join(dataDir, "jobseg.duckdb"),
		},
		Tuning: Tuning{
			RetryAttempts:   envInt("RETRY_ATTEMPTS", 3),
			RetryDelay:      envDuration("RETRY_DELAY", time.Second),
			RequestDelay:    envDuration("REQUEST_DELAY", 300*time.Millisecond),
			HTTPTimeout:     envDuration("HTTP_TIMEOUT", 30*time.Second),
			RegistryWorkers: envInt("REGISTRY_WORKERS", 5),
			GeocodeWorkers:  envInt("GEOCODE_WORKERS", 3),
			MatchWorkers:    envInt("MATCH_WORKERS", 30),
			PageSize:        envInt("COLLECT_PAGE_SIZE", 1000),
			IndexBatchSize:  envInt("INDEX_BATCH_SIZE", 5000),
			SearchBatch:     envInt("SEARCH_BATCH_SIZE", 1000),
			ChunkSize:       envInt("MATCH_CHUNK_SIZE", 50000),
			FlushInterval:   envInt("MATCH_FLUSH_INTERVAL", 100000),
			CacheTTL:        envDuration("GEOCODE_CACHE_TTL", 30*24*time.Hour),
		},
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		Radius: map[PlaceType]string{
			PlaceHighSchool: envString("RADIUS_HIGH_SCHOOL", "200m"),
			PlaceUniversity: envString("RADIUS_UNIVERSITY", "300m"),
			PlaceCompany:    envString("RADIUS_COMPANY", "200m"),
		},
	}

	return cfg, nil
}

// Validate creates the directory tree and warns about missing API keys.
// Missing keys are not fatal: collection then runs in fallback mode against
// the latest snapshots.
func (c *Config) Validate() error {
	for _, dir := range []string{
		c.Paths.RawDir,
		c.Paths.FinalDir,
		c.Paths.DMPDir,
		c.Paths.OutputDir,
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	var missing []string

	if c.Providers.RegistryKey == "" {
		missing = append(missing, "REGISTRY_API_KEY")
	}

	if c.Providers.GeocodeKey == "" {
		missing = append(missing, "GEOCODE_API_KEY")
	}

	if c.Providers.RegionCodeKey == "" {
		missing = append(missing, "REGION_CODE_API_KEY")
	}

	for _, key := range missing {
		log.Printf("Missing API key %s - collection will rely on existing snapshots", key)
	}

	return nil
}
