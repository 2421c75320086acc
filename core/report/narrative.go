package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/evidence"
)

const noneIdentified = "_None identified._"

// Section headings in render order. Every heading is always rendered.
const (
	SectionExecutiveSummary       = "Executive Summary"
	SectionSystemCharacterization = "System Characterization"
	SectionEvidenceHighlights     = "Evidence Highlights"
	SectionMisleadingSignals      = "Misleading Signals"
	SectionSafeToChangeSurface    = "Safe-to-Change Surface"
	SectionRiskSynthesis          = "Risk Synthesis"
	SectionDecisionArtifacts      = "Decision Artifacts"
	SectionAuthorityCeiling       = "Authority Ceiling Evaluation"
	SectionWhatNotToFix           = "What Not to Fix"
	SectionRefusalOrFirstAction   = "Refusal or First Action"
	SectionConfidenceAndLimits    = "Confidence and Limits"
	SectionValidityAndExpiry      = "Validity and Expiry"
)

var Sections = []string{
	SectionExecutiveSummary,
	SectionSystemCharacterization,
	SectionEvidenceHighlights,
	SectionMisleadingSignals,
	SectionSafeToChangeSurface,
	SectionRiskSynthesis,
	SectionDecisionArtifacts,
	SectionAuthorityCeiling,
	SectionWhatNotToFix,
	SectionRefusalOrFirstAction,
	SectionConfidenceAndLimits,
	SectionValidityAndExpiry,
}

// characterizationSources feed the System Characterization section.
var characterizationSources = []string{"structure", "semantic", "test_signals", "governance", "intent_posture"}

// sectionSources maps the remaining pass-through sections to their root keys.
var sectionSources = map[string]string{
	SectionMisleadingSignals:    "misleading_signals",
	SectionSafeToChangeSurface:  "safe_change_surface",
	SectionRiskSynthesis:        "risk_synthesis",
	SectionDecisionArtifacts:    "decision_artifacts",
	SectionAuthorityCeiling:     "authority_ceiling_evaluation",
	SectionWhatNotToFix:         "what_not_to_fix",
	SectionRefusalOrFirstAction: "refusal_or_first_action",
	SectionConfidenceAndLimits:  "confidence_and_limits",
	SectionValidityAndExpiry:    "validity_and_expiry",
}

var narrativeTemplate = template.Must(template.New("narrative").Parse(`# Repository Scan Report: {{ .Repository }}
{{ range .Sections }}
## {{ .Heading }}

{{ if .Lines }}{{ range .Lines }}{{ . }}
{{ end }}{{ else }}{{ $.None }}
{{ end }}{{ end }}`))

type narrativeSection struct {
	Heading string
	Lines   []string
}

type narrativeData struct {
	Repository string
	None       string
	Sections   []narrativeSection
}

// RenderNarrative projects root into Markdown. The same document always
// renders to the same bytes.
func RenderNarrative(root *document.Mapping) ([]byte, error) {
	if root == nil {
		root = document.NewMapping()
	}
	data := narrativeData{Repository: repositoryName(root), None: noneIdentified}
	for _, heading := range Sections {
		data.Sections = append(data.Sections, narrativeSection{Heading: heading, Lines: sectionLines(root, heading)})
	}
	buffer := &bytes.Buffer{}
	if err := narrativeTemplate.Execute(buffer, data); err != nil {
		return nil, fmt.Errorf("render narrative: %w", err)
	}
	return buffer.Bytes(), nil
}

func sectionLines(root *document.Mapping, heading string) []string {
	switch heading {
	case SectionExecutiveSummary:
		return executiveSummary(root)
	case SectionSystemCharacterization:
		lines := []string{}
		for _, key := range characterizationSources {
			value, ok := root.Get(key)
			if !ok || evidence.IsEmpty(value) {
				continue
			}
			lines = append(lines, "### "+title(key), "")
			lines = append(lines, bullets(value)...)
			lines = append(lines, "")
		}
		if len(lines) > 0 {
			lines = lines[:len(lines)-1]
		}
		return lines
	case SectionEvidenceHighlights:
		return evidenceHighlights(root)
	default:
		value, ok := root.Get(sectionSources[heading])
		if !ok {
			return nil
		}
		return bullets(value)
	}
}

func repositoryName(root *document.Mapping) string {
	if repository, ok := root.MappingField("repository"); ok {
		if name, ok := repository.StringField("name"); ok && strings.TrimSpace(name) != "" {
			return name
		}
	}
	return "unknown"
}

func executiveSummary(root *document.Mapping) []string {
	lines := []string{}
	if repository, ok := root.MappingField("repository"); ok {
		name, _ := repository.StringField("name")
		path, _ := repository.StringField("path")
		lines = append(lines, fmt.Sprintf("- Repository: %s (%s)", name, path))
	}
	if summary, ok := root.MappingField("summary"); ok {
		for _, key := range summary.Keys() {
			value, _ := summary.Get(key)
			if key == "by_severity" {
				if counts, ok := value.(*document.Mapping); ok {
					lines = append(lines, "- By severity: "+severityCounts(counts))
					continue
				}
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", title(key), inline(value)))
		}
	}
	if metadata, ok := root.MappingField("metadata"); ok {
		if digest, ok := metadata.StringField("deterministic_hash"); ok {
			lines = append(lines, fmt.Sprintf("- Deterministic hash: `%s`", digest))
		}
	}
	return lines
}

// severityCounts lists known severities from CRITICAL down, then any others by name.
func severityCounts(counts *document.Mapping) string {
	keys := counts.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return evidence.Severity(keys[i]).Rank() > evidence.Severity(keys[j]).Rank()
	})
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value, _ := counts.Get(key)
		parts = append(parts, key+"="+inline(value))
	}
	return strings.Join(parts, ", ")
}

func evidenceHighlights(root *document.Mapping) []string {
	lines := []string{}
	_ = document.Walk(root, func(path document.Path, value document.Value) error {
		node, ok := value.(*document.Mapping)
		if !ok || !node.Has(evidence.FieldEvidence) || !evidence.IsHighFinding(node) {
			return nil
		}
		finding, err := evidence.DecodeFinding(node)
		if err != nil {
			return nil
		}
		locations := []string{}
		for _, record := range finding.Evidence {
			if location := record.Location(); location != "" {
				locations = append(locations, "`"+location+"`")
			}
		}
		provenance := "no file provenance"
		if len(locations) > 0 {
			provenance = strings.Join(locations, ", ")
		}
		label := findingLabel(finding)
		lines = append(lines, fmt.Sprintf("- [%s] %s (%s): %s", finding.Severity, label, path.Pointer(), provenance))
		return document.SkipChildren
	})
	return lines
}

func findingLabel(finding evidence.Finding) string {
	switch {
	case strings.TrimSpace(finding.Title) != "" && finding.ID != "":
		return finding.ID + " " + finding.Title
	case strings.TrimSpace(finding.Title) != "":
		return finding.Title
	case finding.ID != "":
		return finding.ID
	case strings.TrimSpace(finding.Description) != "":
		return finding.Description
	default:
		return "untitled finding"
	}
}

func bullets(value document.Value) []string {
	if evidence.IsEmpty(value) {
		return nil
	}
	lines := []string{}
	switch typed := value.(type) {
	case *document.Sequence:
		for _, item := range typed.Items() {
			if evidence.IsEmpty(item) {
				continue
			}
			lines = append(lines, "- "+inline(item))
		}
	case *document.Mapping:
		for _, key := range typed.Keys() {
			entry, _ := typed.Get(key)
			lines = append(lines, fmt.Sprintf("- %s: %s", title(key), inline(entry)))
		}
	default:
		lines = append(lines, inline(value))
	}
	return lines
}

// inline renders one value on a single line. Finding-like mappings render
// as a label; other containers fall back to compact sorted JSON.
func inline(value document.Value) string {
	switch typed := value.(type) {
	case document.String:
		return strings.Join(strings.Fields(string(typed)), " ")
	case document.Number:
		return string(typed)
	case document.Bool:
		if typed {
			return "true"
		}
		return "false"
	case *document.Mapping:
		if label, ok := mappingLabel(typed); ok {
			return label
		}
	}
	if document.IsNull(value) {
		return "null"
	}
	encoded, err := document.Marshal(value)
	if err != nil {
		return ""
	}
	return "`" + string(encoded) + "`"
}

func mappingLabel(node *document.Mapping) (string, bool) {
	var text string
	for _, key := range []string{"title", "name", "summary", "description", "id"} {
		if value, ok := node.StringField(key); ok && strings.TrimSpace(value) != "" {
			text = strings.Join(strings.Fields(value), " ")
			break
		}
	}
	if text == "" {
		return "", false
	}
	if severity, ok := evidence.SeverityOf(node); ok {
		text = "[" + string(severity) + "] " + text
	}
	return text, true
}

func title(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for index, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[index] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}
