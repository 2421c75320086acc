package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
	"github.com/Dee66/repo-scanner-sub001/core/fsx"
	"github.com/Dee66/repo-scanner-sub001/core/hasher"
)

const (
	MachineFileName   = "scan_report.json"
	NarrativeFileName = "scan_report.md"
	HistoryFileName   = "history.jsonl"
)

// LoadDocument reads an analysis document. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func LoadDocument(path string) (document.Value, error) {
	// #nosec G304 -- input path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("read analysis document: %w", err), coreerrors.CategoryIOFailure, "input_unreadable", "check --input", false)
	}
	var value document.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		value, err = document.DecodeYAML(content)
	default:
		value, err = document.Decode(content)
	}
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("parse analysis document %s: %w", path, err), coreerrors.CategoryInvalidInput, "input_invalid", "", false)
	}
	return value, nil
}

// LoadFileList reads a canonical file list given either as a JSON array of
// strings or as one path per line. Blank lines and # comments are skipped.
func LoadFileList(path string) ([]string, error) {
	// #nosec G304 -- file list path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("read file list: %w", err), coreerrors.CategoryIOFailure, "file_list_unreadable", "check --files", false)
	}
	trimmed := strings.TrimSpace(string(content))
	if strings.HasPrefix(trimmed, "[") {
		var files []string
		if err := json.Unmarshal([]byte(trimmed), &files); err != nil {
			return nil, coreerrors.Wrap(fmt.Errorf("parse file list %s: %w", path, err), coreerrors.CategoryInvalidInput, "file_list_invalid", "", false)
		}
		return files, nil
	}
	files := []string{}
	for _, line := range strings.Split(trimmed, "\n") {
		entry := strings.TrimSpace(line)
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		files = append(files, entry)
	}
	return files, nil
}

type Artifacts struct {
	MachinePath   string `json:"machine_path"`
	NarrativePath string `json:"narrative_path"`
	HistoryPath   string `json:"history_path"`
}

type historyEntry struct {
	RunID             string `json:"run_id"`
	DeterministicHash string `json:"deterministic_hash"`
	Revision          string `json:"revision"`
	RunTimestamp      string `json:"run_timestamp"`
	SuppressedCount   int    `json:"suppressed_findings"`
}

// WriteArtifacts writes both renderings atomically into outDir and appends
// one line per run to the history ledger next to them. The returned paths
// are absolute.
func WriteArtifacts(outDir string, result Result) (Artifacts, error) {
	if len(result.Machine) == 0 || len(result.Narrative) == 0 {
		return Artifacts{}, coreerrors.New("run produced no rendered output", coreerrors.CategoryInternalFailure, "artifacts_missing", "")
	}
	absoluteOut, err := filepath.Abs(outDir)
	if err != nil {
		return Artifacts{}, coreerrors.Wrap(err, coreerrors.CategoryIOFailure, "artifact_write_failed", "", false)
	}
	paths, err := fsx.WriteArtifactSet(absoluteOut, map[string][]byte{
		MachineFileName:   result.Machine,
		NarrativeFileName: result.Narrative,
	}, 0o600)
	if err != nil {
		return Artifacts{}, coreerrors.Wrap(err, coreerrors.CategoryIOFailure, "artifact_write_failed", "check --out-dir permissions", true)
	}
	artifacts := Artifacts{
		MachinePath:   paths[0],
		NarrativePath: paths[1],
		HistoryPath:   filepath.Join(absoluteOut, HistoryFileName),
	}

	entry := historyEntry{
		RunID:             result.RunID,
		DeterministicHash: result.Hash,
		Revision:          result.Revision.ID,
		SuppressedCount:   result.Policy.Count(),
	}
	if metadata, ok := result.Document.MappingField(hasher.FieldMetadata); ok {
		entry.RunTimestamp, _ = metadata.StringField("run_timestamp")
	}
	if err := fsx.AppendJSONLine(artifacts.HistoryPath, entry, 0o600); err != nil {
		return artifacts, coreerrors.Wrap(err, coreerrors.CategoryIOFailure, "history_write_failed", "", true)
	}
	return artifacts, nil
}
