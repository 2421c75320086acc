// Package evidence defines the evidence record model and rewrites every
// high-severity evidence field of an analysis document into it.
package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Dee66/repo-scanner-sub001/core/document"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Record field names.
const (
	FieldRepoCommit = "repo_commit"
	FieldSourcePath = "source_path"
	FieldSnippet    = "snippet"
	FieldLineRange  = "line_range"
	FieldByteRange  = "byte_range"

	FieldSeverity = "severity"
	FieldEvidence = "evidence"
)

// ParseSeverity accepts any letter case. Unknown values report false.
func ParseSeverity(raw string) (Severity, bool) {
	switch Severity(strings.ToUpper(strings.TrimSpace(raw))) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityCritical:
		return SeverityCritical, true
	default:
		return "", false
	}
}

func (severity Severity) IsHigh() bool {
	return severity == SeverityHigh || severity == SeverityCritical
}

// Rank orders severities from LOW (1) to CRITICAL (4); unknown is 0.
func (severity Severity) Rank() int {
	switch severity {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// SeverityOf reads a node's severity field.
func SeverityOf(node *document.Mapping) (Severity, bool) {
	raw, ok := node.StringField(FieldSeverity)
	if !ok {
		return "", false
	}
	return ParseSeverity(raw)
}

// IsHighFinding reports whether node carries a HIGH or CRITICAL severity.
func IsHighFinding(node *document.Mapping) bool {
	severity, ok := SeverityOf(node)
	return ok && severity.IsHigh()
}

// IsEmpty reports whether an evidence value grounds nothing.
func IsEmpty(value document.Value) bool {
	switch typed := value.(type) {
	case document.String:
		return strings.TrimSpace(string(typed)) == ""
	case *document.Sequence:
		return typed.Len() == 0
	case *document.Mapping:
		return typed.Len() == 0
	default:
		return document.IsNull(value)
	}
}

type Evidence struct {
	RepoCommit string  `json:"repo_commit"`
	SourcePath *string `json:"source_path"`
	Snippet    *string `json:"snippet"`
	LineRange  *[2]int `json:"line_range,omitempty"`
	ByteRange  *[2]int `json:"byte_range,omitempty"`
}

type Finding struct {
	ID          string     `json:"id"`
	Severity    Severity   `json:"severity"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Evidence    []Evidence `json:"evidence"`
}

// DecodeFinding reads the typed view of a finding node. Unknown fields are ignored.
func DecodeFinding(node *document.Mapping) (Finding, error) {
	encoded, err := document.Marshal(node)
	if err != nil {
		return Finding{}, err
	}
	var loose struct {
		ID          json.RawMessage `json:"id"`
		Severity    string          `json:"severity"`
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Evidence    json.RawMessage `json:"evidence"`
	}
	if err := json.Unmarshal(encoded, &loose); err != nil {
		return Finding{}, fmt.Errorf("decode finding: %w", err)
	}
	finding := Finding{
		Title:       loose.Title,
		Description: loose.Description,
	}
	finding.ID = findingID(loose.ID)
	if severity, ok := ParseSeverity(loose.Severity); ok {
		finding.Severity = severity
	} else {
		finding.Severity = Severity(loose.Severity)
	}
	var items []json.RawMessage
	if json.Unmarshal(loose.Evidence, &items) != nil {
		return finding, nil
	}
	for _, item := range items {
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var record Evidence
		if json.Unmarshal(item, &record) != nil {
			continue
		}
		finding.Evidence = append(finding.Evidence, record)
	}
	return finding, nil
}

// findingID keeps numeric ids in their literal spelling.
func findingID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}
	return string(raw)
}

// Location renders "path:start-end" (or "path:line") for an evidence record.
func (record Evidence) Location() string {
	if record.SourcePath == nil || *record.SourcePath == "" {
		return ""
	}
	if record.LineRange == nil {
		return *record.SourcePath
	}
	if record.LineRange[0] == record.LineRange[1] {
		return fmt.Sprintf("%s:%d", *record.SourcePath, record.LineRange[0])
	}
	return fmt.Sprintf("%s:%d-%d", *record.SourcePath, record.LineRange[0], record.LineRange[1])
}
