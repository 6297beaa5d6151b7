// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Stages a dataset moves through.
const (
	StageRaw   = "raw"
	StageFinal = "final"
)

// ErrNoSnapshot is returned when neither a registered nor an on-disk
// snapshot exists for a dataset.
var ErrNoSnapshot = errors.New("no snapshot available")

// Store writes and locates dated snapshots. The registry is authoritative;
// when it has no row (first run, or a rebuilt data dir) Store falls back to
// scanning filenames with strict date parsing.
type Store struct {
	rawDir   string
	finalDir string
	registry Registry // may be nil: scan-only mode
	now      func() time.Time
}

// NewStore creates a Store over the raw/final directories.
func NewStore(rawDir, finalDir string, registry Registry) *Store {
	return &Store{
		rawDir:   rawDir,
		finalDir: finalDir,
		registry: registry,
		now:      time.Now,
	}
}

func (s *Store) dir(stage string) string {
	if stage == StageRaw {
		return s.rawDir
	}

	return s.finalDir
}

func filename(dataset, stage string, date time.Time) string {
	if stage == StageRaw {
		return fmt.Sprintf("%s_raw_%s.csv", dataset, date.Format("20060102"))
	}

	return fmt.Sprintf("%s_%s.csv", dataset, date.Format("20060102"))
}

// Save writes a dated snapshot, registers it, and deletes the files it
// supersedes, keeping the at-most-one-live-file invariant.
func (s *Store) Save(dataset, stage string, header []string, rows [][]string) (string, error) {
	date := s.now()
	path := filepath.Join(s.dir(stage), filename(dataset, stage, date))

	if err := WriteCSV(path, header, rows); err != nil {
		return "", err
	}

	var superseded []string

	if s.registry != nil {
		var err error

		superseded, err = s.registry.Register(dataset, stage, date, path, len(rows))
		if err != nil {
			return "", fmt.Errorf("registering %s/%s: %w", dataset, stage, err)
		}
	}

	// Unregistered stale files from before the registry existed are swept by
	// pattern too.
	superseded = append(superseded, s.scanOthers(dataset, stage, path)...)

	deleted := 0

	for _, old := range superseded {
		if old == path {
			continue
		}

		if err := os.Remove(old); err == nil {
			deleted++
		} else if !os.IsNotExist(err) {
			log.Printf("Could not delete superseded snapshot %s: %v", old, err)
		}
	}

	if deleted > 0 {
		log.Printf("Deleted %d superseded %s/%s snapshot(s)", deleted, dataset, stage)
	}

	return path, nil
}

// Latest returns the path of the current snapshot for (dataset, stage).
func (s *Store) Latest(dataset, stage string) (string, error) {
	if s.registry != nil {
		path, ok, err := s.registry.Current(dataset, stage)
		if err != nil {
			return "", err
		}

		if ok {
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}

			log.Printf("Registered snapshot %s is missing on disk, rescanning", path)
		}
	}

	path, _ := s.scanLatest(dataset, stage)
	if path == "" {
		return "", fmt.Errorf("%w for %s/%s", ErrNoSnapshot, dataset, stage)
	}

	return path, nil
}

// parseDate extracts and strictly parses the date suffix of a snapshot
// filename. Malformed suffixes are rejected instead of sorting somewhere
// surprising.
func parseDate(name, dataset, stage string) (time.Time, bool) {
	prefix := dataset + "_"
	if stage == StageRaw {
		prefix = dataset + "_raw_"
	}

	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
		return time.Time{}, false
	}

	suffix := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".csv")

	date, err := time.Parse("20060102", suffix)
	if err != nil {
		return time.Time{}, false
	}

	return date, true
}

func (s *Store) scanLatest(dataset, stage string) (string, time.Time) {
	entries, err := os.ReadDir(s.dir(stage))
	if err != nil {
		return "", time.Time{}
	}

	var (
		best     string
		bestDate time.Time
	)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		date, ok := parseDate(e.Name(), dataset, stage)
		if !ok {
			continue
		}

		// Raw names are a superset of final names: "{ds}_raw_X" parses as
		// final dataset "{ds}_raw". Reject the collision.
		if stage == StageFinal && strings.HasPrefix(e.Name(), dataset+"_raw_") {
			continue
		}

		if date.After(bestDate) {
			best = filepath.Join(s.dir(stage), e.Name())
			bestDate = date
		}
	}

	return best, bestDate
}

// scanOthers lists on-disk dated files for (dataset, stage) other than keep.
func (s *Store) scanOthers(dataset, stage, keep string) []string {
	entries, err := os.ReadDir(s.dir(stage))
	if err != nil {
		return nil
	}

	var ret []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		if _, ok := parseDate(e.Name(), dataset, stage); !ok {
			continue
		}

		if stage == StageFinal && strings.HasPrefix(e.Name(), dataset+"_raw_") {
			continue
		}

		p := filepath.Join(s.dir(stage), e.Name())
		if p != keep {
			ret = append(ret, p)
		}
	}

	return ret
}
