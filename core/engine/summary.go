package engine

import (
	"strconv"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/evidence"
)

var summarySeverities = []evidence.Severity{
	evidence.SeverityCritical,
	evidence.SeverityHigh,
	evidence.SeverityMedium,
	evidence.SeverityLow,
}

// Summarize keeps a summary supplied by the analysis document and only adds
// the suppressed count to it. Otherwise it counts every node with a known
// severity outside the summary and metadata sections.
func Summarize(root *document.Mapping, suppressed int) *document.Mapping {
	if existing, ok := root.MappingField("summary"); ok {
		existing.Set("suppressed_findings", number(suppressed))
		return existing
	}

	counts := map[evidence.Severity]int{}
	total := 0
	_ = document.Walk(root, func(path document.Path, value document.Value) error {
		if len(path) == 1 && (path[0] == "summary" || path[0] == "metadata") {
			return document.SkipChildren
		}
		node, ok := value.(*document.Mapping)
		if !ok {
			return nil
		}
		if severity, ok := evidence.SeverityOf(node); ok {
			counts[severity]++
			total++
		}
		return nil
	})

	bySeverity := document.NewMapping()
	for _, severity := range summarySeverities {
		bySeverity.Set(string(severity), number(counts[severity]))
	}
	summary := document.NewMapping()
	summary.Set("total_findings", number(total))
	summary.Set("by_severity", bySeverity)
	summary.Set("suppressed_findings", number(suppressed))
	return summary
}

func number(value int) document.Number {
	return document.Number(strconv.Itoa(value))
}
