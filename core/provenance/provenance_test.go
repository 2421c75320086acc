package provenance

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.txt")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestComputeLocatesSnippet(t *testing.T) {
	path := writeFixture(t, []byte("line1\nmatch line\nline3\n"))
	result := Calculator{}.Compute(path, "match line")
	if !result.Available || !result.Precise || result.Err != nil {
		t.Fatalf("expected precise result, got %+v", result)
	}
	if result.LineRange != (Range{2, 2}) {
		t.Fatalf("unexpected line range: %v", result.LineRange)
	}
	if result.ByteRange != (Range{6, 16}) {
		t.Fatalf("unexpected byte range: %v", result.ByteRange)
	}
}

func TestLocateCases(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		snippet string
		lines   Range
		bytes   Range
		precise bool
	}{
		{name: "multi_line_snippet", text: "a\nb\nc\nd", snippet: "b\nc", lines: Range{2, 3}, bytes: Range{2, 5}, precise: true},
		{name: "first_occurrence_wins", text: "x\ndup\ndup\n", snippet: "dup", lines: Range{2, 2}, bytes: Range{2, 5}, precise: true},
		{name: "utf8_prefix_counts_bytes", text: "héllo\nwörld\n", snippet: "wörld", lines: Range{2, 2}, bytes: Range{7, 13}, precise: true},
		{name: "case_sensitive_miss", text: "Alpha\n", snippet: "alpha", lines: Range{1, 1}, bytes: Range{0, 6}},
		{name: "blank_snippet", text: "one\ntwo", snippet: "  \n", lines: Range{1, 2}, bytes: Range{0, 7}},
		{name: "empty_text", text: "", snippet: "", lines: Range{1, 1}, bytes: Range{0, 0}},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			result := Locate(testCase.text, testCase.snippet)
			if result.LineRange != testCase.lines || result.ByteRange != testCase.bytes {
				t.Fatalf("unexpected ranges lines=%v bytes=%v", result.LineRange, result.ByteRange)
			}
			if result.Precise != testCase.precise {
				t.Fatalf("unexpected precise=%t", result.Precise)
			}
		})
	}
}

func TestLocateMissReportsSoftError(t *testing.T) {
	result := Locate("abc\n", "zzz")
	if !result.Available || result.Precise {
		t.Fatalf("expected whole-file fallback, got %+v", result)
	}
	if !errors.Is(result.Err, ErrSnippetNotFound) {
		t.Fatalf("unexpected error: %v", result.Err)
	}
}

func TestComputeInvalidUTF8IsDropped(t *testing.T) {
	path := writeFixture(t, []byte("ok\xff\xfe\nneedle\n"))
	result := Calculator{}.Compute(path, "needle")
	if !result.Precise {
		t.Fatalf("expected snippet match despite invalid bytes: %+v", result)
	}
	if result.LineRange != (Range{2, 2}) || result.ByteRange != (Range{3, 9}) {
		t.Fatalf("unexpected ranges: %v %v", result.LineRange, result.ByteRange)
	}
}

func TestComputeUnavailable(t *testing.T) {
	missing := Calculator{}.Compute(filepath.Join(t.TempDir(), "missing.txt"), "x")
	if missing.Available || missing.Err == nil {
		t.Fatalf("expected unavailable result for missing file: %+v", missing)
	}

	dir := Calculator{}.Compute(t.TempDir(), "")
	if dir.Available || !errors.Is(dir.Err, ErrNotRegularFile) {
		t.Fatalf("expected unavailable result for directory: %+v", dir)
	}

	path := writeFixture(t, []byte("0123456789"))
	large := Calculator{MaxFileBytes: 4}.Compute(path, "")
	if large.Available || !errors.Is(large.Err, ErrFileTooLarge) {
		t.Fatalf("expected size limit to apply: %+v", large)
	}
}

func TestLineCount(t *testing.T) {
	cases := map[string]int{
		"":             1,
		"a":            1,
		"a\n":          1,
		"a\nb":         2,
		"a\nb\n":       2,
		"\n\n":         2,
		"l1\nl2\nl3\n": 3,
	}
	for text, want := range cases {
		if got := LineCount(text); got != want {
			t.Fatalf("LineCount(%q) = %d, want %d", text, got, want)
		}
	}
}
