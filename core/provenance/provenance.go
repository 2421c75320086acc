// Package provenance locates an evidence snippet inside a file as a 1-based
// inclusive line range and a half-open UTF-8 byte range.
package provenance

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const DefaultMaxFileBytes int64 = 16 << 20

var (
	ErrSnippetNotFound = errors.New("snippet not found in file")
	ErrFileTooLarge    = errors.New("file exceeds provenance size limit")
	ErrNotRegularFile  = errors.New("path is not a regular file")
)

// Range is a [start, end] pair. Line ranges are inclusive, byte ranges half-open.
type Range [2]int

type Result struct {
	LineRange Range
	ByteRange Range
	// Available is false when the file could not be read at all.
	Available bool
	// Precise is true when the ranges point at the snippet rather than the whole file.
	Precise bool
	// Err explains why the result is degraded. It is informational only.
	Err error
}

type Calculator struct {
	MaxFileBytes int64
}

// Compute never fails: unreadable files yield an unavailable result and
// unmatched snippets yield whole-file bounds, each with Err set.
func (calculator Calculator) Compute(path string, snippet string) Result {
	text, err := calculator.readText(path)
	if err != nil {
		return Result{Err: err}
	}
	return Locate(text, snippet)
}

func (calculator Calculator) readText(path string) (string, error) {
	limit := calculator.MaxFileBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat evidence file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", ErrNotRegularFile
	}
	if info.Size() > limit {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, info.Size(), limit)
	}
	// #nosec G304 -- evidence paths are resolved against the scanned repository.
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read evidence file: %w", err)
	}
	return DecodeText(content), nil
}

// DecodeText interprets content as UTF-8, dropping invalid byte sequences.
func DecodeText(content []byte) string {
	return strings.ToValidUTF8(string(content), "")
}

// WholeFile returns bounds covering all of text.
func WholeFile(text string) Result {
	return Result{
		LineRange: Range{1, LineCount(text)},
		ByteRange: Range{0, len(text)},
		Available: true,
	}
}

// Locate refines whole-file bounds to the leftmost exact occurrence of snippet.
// A blank snippet keeps whole-file bounds without an error.
func Locate(text string, snippet string) Result {
	result := WholeFile(text)
	if strings.TrimSpace(snippet) == "" {
		return result
	}
	offset := strings.Index(text, snippet)
	if offset < 0 {
		result.Err = ErrSnippetNotFound
		return result
	}
	startLine := strings.Count(text[:offset], "\n") + 1
	endLine := startLine + strings.Count(snippet, "\n")
	result.LineRange = Range{startLine, endLine}
	result.ByteRange = Range{offset, offset + len(snippet)}
	result.Precise = true
	return result
}

// LineCount counts newline-terminated lines plus a trailing unterminated one.
// Empty text counts as a single line.
func LineCount(text string) int {
	count := strings.Count(text, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		count++
	}
	if count == 0 {
		return 1
	}
	return count
}
