package fsx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomicCreatesAndOverwrites(t *testing.T) {
	target := filepath.Join(t.TempDir(), "state.json")

	if err := WriteFileAtomic(target, []byte("first\n"), 0o600); err != nil {
		t.Fatalf("first write: %v", err)
	}
	first, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read first write: %v", err)
	}
	if string(first) != "first\n" {
		t.Fatalf("unexpected first content: %q", string(first))
	}

	if err := WriteFileAtomic(target, []byte("second\n"), 0o600); err != nil {
		t.Fatalf("second write: %v", err)
	}
	second, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read second write: %v", err)
	}
	if string(second) != "second\n" {
		t.Fatalf("unexpected second content: %q", string(second))
	}
}

func TestWriteFileAtomicMode(t *testing.T) {
	target := filepath.Join(t.TempDir(), "secure.json")

	if err := WriteFileAtomic(target, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600 got %#o", info.Mode().Perm())
	}
}

func TestWriteArtifactSet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	paths, err := WriteArtifactSet(dir, map[string][]byte{
		"scan_report.md":   []byte("# report\n"),
		"scan_report.json": []byte("{}\n"),
	}, 0o600)
	if err != nil {
		t.Fatalf("write artifact set: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "scan_report.json" || filepath.Base(paths[1]) != "scan_report.md" {
		t.Fatalf("unexpected paths: %v", paths)
	}
	content, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(content) != "# report\n" {
		t.Fatalf("unexpected artifact content: %q", string(content))
	}
}

func TestWriteArtifactSetRejectsNestedNames(t *testing.T) {
	for _, name := range []string{"../escape.json", "sub/file.json", ""} {
		if _, err := WriteArtifactSet(t.TempDir(), map[string][]byte{name: []byte("x")}, 0o600); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}
