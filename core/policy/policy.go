// Package policy enforces the evidence-first rule: a HIGH or CRITICAL finding
// without evidence is removed from the document, never merely flagged.
package policy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/evidence"
	"github.com/Dee66/repo-scanner-sub001/core/logging"
)

// DefaultCollections name the finding collections whose HIGH and CRITICAL
// members must carry an evidence field at all.
var DefaultCollections = []string{
	"artifacts",
	"decision_artifacts",
	"findings",
	"misleading_signals",
	"risks",
}

type Filter struct {
	Collections []string
	Logger      *zap.Logger
}

type Dropped struct {
	Pointer  string `json:"pointer"`
	ID       string `json:"id,omitempty"`
	Severity string `json:"severity"`
}

type Report struct {
	Dropped []Dropped `json:"dropped"`
}

func (report Report) Count() int {
	return len(report.Dropped)
}

// Apply removes unsubstantiated high-severity findings from root in place,
// wherever they sit in the tree. Inside designated collections a missing
// evidence field counts as empty; elsewhere a node needs an evidence field
// to be treated as a finding.
func (filter Filter) Apply(root document.Value) Report {
	logger := logging.OrNop(filter.Logger)
	designated := map[string]struct{}{}
	collections := filter.Collections
	if len(collections) == 0 {
		collections = DefaultCollections
	}
	for _, name := range collections {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			designated[trimmed] = struct{}{}
		}
	}

	report := Report{Dropped: []Dropped{}}
	_ = document.Walk(root, func(path document.Path, value document.Value) error {
		_, isCollection := designated[path.Last()]
		if len(path) == 0 {
			isCollection = false
		}
		switch typed := value.(type) {
		case *document.Sequence:
			typed.Retain(func(index int, item document.Value) bool {
				node, ok := item.(*document.Mapping)
				if !ok || !unsubstantiated(node, isCollection) {
					return true
				}
				report.Dropped = append(report.Dropped, dropped(path, fmt.Sprint(index), node))
				return false
			})
		case *document.Mapping:
			for _, key := range typed.Keys() {
				entry, _ := typed.Get(key)
				node, ok := entry.(*document.Mapping)
				if !ok || !unsubstantiated(node, isCollection) {
					continue
				}
				report.Dropped = append(report.Dropped, dropped(path, key, node))
				typed.Delete(key)
			}
		}
		return nil
	})

	for _, entry := range report.Dropped {
		logger.Debug("finding suppressed by evidence-first policy",
			zap.String("pointer", entry.Pointer),
			zap.String("id", entry.ID),
			zap.String("severity", entry.Severity),
		)
	}
	return report
}

func unsubstantiated(node *document.Mapping, inCollection bool) bool {
	if !evidence.IsHighFinding(node) {
		return false
	}
	raw, hasEvidence := node.Get(evidence.FieldEvidence)
	if !hasEvidence {
		return inCollection
	}
	return evidence.IsEmpty(raw)
}

func dropped(parent document.Path, segment string, node *document.Mapping) Dropped {
	entry := Dropped{
		Pointer: parent.Pointer() + "/" + document.EscapePointerToken(segment),
	}
	if severity, ok := evidence.SeverityOf(node); ok {
		entry.Severity = string(severity)
	}
	if id, ok := node.Get("id"); ok {
		switch typed := id.(type) {
		case document.String:
			entry.ID = string(typed)
		case document.Number:
			entry.ID = string(typed)
		}
	}
	return entry
}
