// Copyright (c) 2026 Khaled Abbas
//
// This source code is licensed under the Business Source License 1.1.
//
// Change Date: 4 years after the first public release of this version.
// Change License: MIT
//
// On the Change Date, this version of the code automatically converts
// to the MIT License. Prior to that date, use is subject to the
// Additional Use Grant. See the LICENSE file for details.

// Package source reads candidate passwords.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

const maxLineSize = 1024 * 1024

// Source is a sequential supply of candidates that can be counted up front.
type Source interface {
	Count() (int, error)
	Open() (Reader, error)
}

// Reader yields candidates in file order.
type Reader interface {
	// Next returns up to n candidates; an empty slice means the source is exhausted.
	Next(n int) ([]string, error)
	Close() error
}

// File is a newline-delimited password list on disk.
type File struct {
	Path string
}

func (f File) Count() (int, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return 0, fmt.Errorf("open password file: %w", err)
	}
	defer fh.Close()

	scanner := newScanner(fh)
	count := 0
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("count passwords in %s: %w", f.Path, err)
	}
	return count, nil
}

func (f File) Open() (Reader, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open password file: %w", err)
	}
	return &lineReader{closer: fh, scanner: newScanner(fh)}, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return scanner
}

type lineReader struct {
	closer  io.Closer
	scanner *bufio.Scanner
}

func (r *lineReader) Next(n int) ([]string, error) {
	batch := make([]string, 0, n)
	for len(batch) < n && r.scanner.Scan() {
		batch = append(batch, Clean(r.scanner.Text()))
	}
	if err := r.scanner.Err(); err != nil {
		return batch, fmt.Errorf("read passwords: %w", err)
	}
	return batch, nil
}

func (r *lineReader) Close() error { return r.closer.Close() }

// Clean trims trailing whitespace from a raw line. Empty lines stay empty
// candidates.
func Clean(line string) string {
	return strings.TrimRightFunc(line, unicode.IsSpace)
}

// Slice is an in-memory source.
type Slice []string

func (s Slice) Count() (int, error) { return len(s), nil }

func (s Slice) Open() (Reader, error) {
	return &sliceReader{items: s}, nil
}

type sliceReader struct {
	items []string
	pos   int
}

func (r *sliceReader) Next(n int) ([]string, error) {
	end := min(r.pos+n, len(r.items))
	batch := append([]string(nil), r.items[r.pos:end]...)
	r.pos = end
	return batch, nil
}

func (r *sliceReader) Close() error { return nil }
