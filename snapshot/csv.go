// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot manages the dated CSV artifacts the pipeline produces and
// falls back to, together with the registry that tracks which one is current.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Encoding selects how a CSV file is decoded on read.
type Encoding int

// Supported snapshot encodings. Everything we write is UTF-8 with a BOM so
// spreadsheet tools open Korean text correctly; legacy snapshots produced by
// older tooling are CP949.
const (
	EncodingUTF8 Encoding = iota
	EncodingCP949
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes header+rows to path as UTF-8 with a BOM, creating parent
// directories as needed.
func WriteCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := bufio.NewWriter(f)

	if _, err := w.Write(utf8BOM); err != nil {
		return closeJoin(f, fmt.Errorf("writing BOM: %w", err))
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return closeJoin(f, fmt.Errorf("writing header: %w", err))
	}

	if err := cw.WriteAll(rows); err != nil {
		return closeJoin(f, fmt.Errorf("writing rows: %w", err))
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return closeJoin(f, err)
	}

	if err := w.Flush(); err != nil {
		return closeJoin(f, err)
	}

	return f.Close()
}

// AppendCSV appends rows to path, writing the header only when the file is
// created by this call. The matcher uses this for checkpoint flushes.
func AppendCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		return closeJoin(f, err)
	}

	w := bufio.NewWriter(f)
	cw := csv.NewWriter(w)

	if info.Size() == 0 {
		if _, err := w.Write(utf8BOM); err != nil {
			return closeJoin(f, err)
		}

		if err := cw.Write(header); err != nil {
			return closeJoin(f, err)
		}
	}

	if err := cw.WriteAll(rows); err != nil {
		return closeJoin(f, err)
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return closeJoin(f, err)
	}

	if err := w.Flush(); err != nil {
		return closeJoin(f, err)
	}

	return f.Close()
}

// NewReader opens a CSV file for streaming reads, transparently stripping a
// UTF-8 BOM or decoding CP949. Close the returned closer when done.
func NewReader(path string, enc Encoding) (*csv.Reader, io.Closer, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}

	var r io.Reader = bufio.NewReader(f)

	switch enc {
	case EncodingCP949:
		r = transform.NewReader(r, korean.EUCKR.NewDecoder())
	case EncodingUTF8:
		br := r.(*bufio.Reader)
		if peek, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(peek, utf8BOM) {
			_, _ = br.Discard(len(utf8BOM))
		}
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // legacy snapshots have ragged trailing columns

	return cr, f, nil
}

// ReadCSV slurps an entire snapshot: header plus data rows.
func ReadCSV(path string, enc Encoding) ([]string, [][]string, error) {
	cr, closer, err := NewReader(path, enc)
	if err != nil {
		return nil, nil, err
	}

	defer func() { _ = closer.Close() }()

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading rows of %s: %w", path, err)
	}

	return header, rows, nil
}

func closeJoin(c io.Closer, err error) error {
	if cerr := c.Close(); cerr != nil {
		return fmt.Errorf("%w (and closing: %w)", err, cerr)
	}

	return err
}
