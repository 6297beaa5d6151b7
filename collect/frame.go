// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

// Package collect fetches place and reference datasets from the upstream
// registries: paged JSON code lists, the corporate registry ZIP with its
// per-company detail fan-out, and the paged-XML school facility feeds.
package collect

import "fmt"

// Frame is a rectangular dataset as read from or written to a snapshot.
type Frame struct {
	Header []string
	Rows   [][]string
}

// Col returns the index of a header column, or -1.
func (f Frame) Col(name string) int {
	for i, h := range f.Header {
		if h == name {
			return i
		}
	}

	return -1
}

// Get returns row[col] when both exist, else "".
func (f Frame) Get(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}

	return row[col]
}

// RequireCols resolves column names, failing when any is missing.
func (f Frame) RequireCols(names ...string) ([]int, error) {
	ret := make([]int, len(names))

	for i, name := range names {
		ret[i] = f.Col(name)
		if ret[i] < 0 {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	return ret, nil
}

// Metrics tracks statistics during a collection phase.
type Metrics struct {
	Pages         int // pages fetched
	Records       int // records accumulated
	DetailSuccess int // per-record detail lookups that returned data
	DetailFailed  int // per-record detail lookups that did not
}

// Merge combines two Metrics objects.
func (m *Metrics) Merge(o *Metrics) *Metrics {
	m.Pages += o.Pages
	m.Records += o.Records
	m.DetailSuccess += o.DetailSuccess
	m.DetailFailed += o.DetailFailed

	return m
}

// maxPages is the hard ceiling on pagination, protection against a provider
// that never reports a consistent total.
const maxPages = 100
