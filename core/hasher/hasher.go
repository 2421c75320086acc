// Package hasher computes the deterministic content hash of a machine
// output document and embeds it under metadata.deterministic_hash.
package hasher

import (
	"fmt"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/jcs"
)

const (
	FieldMetadata          = "metadata"
	FieldDeterministicHash = "deterministic_hash"
)

// ContentSections are the root sections that contribute to the hash.
// run_id, run_timestamp and the rest of metadata never do.
var ContentSections = []string{
	"files",
	"structure",
	"semantic",
	"test_signals",
	"governance",
	"intent_posture",
	"misleading_signals",
	"safe_change_surface",
	"risk_synthesis",
	"decision_artifacts",
	"authority_ceiling_evaluation",
}

// Snapshot returns a mapping holding only the content sections present on root.
func Snapshot(root *document.Mapping) *document.Mapping {
	snapshot := document.NewMapping()
	if root == nil {
		return snapshot
	}
	for _, section := range ContentSections {
		if value, ok := root.Get(section); ok {
			snapshot.Set(section, value)
		}
	}
	return snapshot
}

// CanonicalBytes serializes the content snapshot in RFC 8785 form. RFC 8785
// rewrites numbers as IEEE doubles, so a snapshot holding a number literal
// that canonicalization would change is serialized with sorted keys and
// literal numbers instead. RFC 8785 output never carries such a literal, so
// the two forms never share bytes and distinct numbers never share a digest.
func CanonicalBytes(root *document.Mapping) ([]byte, error) {
	snapshot := Snapshot(root)
	encoded, err := document.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode content sections: %w", err)
	}
	if !canonicalNumbers(snapshot) {
		return encoded, nil
	}
	canonical, err := jcs.CanonicalizeJSON(encoded)
	if err != nil {
		return nil, fmt.Errorf("canonicalize content sections: %w", err)
	}
	return canonical, nil
}

func canonicalNumbers(value document.Value) bool {
	canonical := true
	_ = document.Walk(value, func(_ document.Path, node document.Value) error {
		if number, ok := node.(document.Number); ok && canonical {
			canonical = jcs.IsCanonicalNumber(string(number))
		}
		return nil
	})
	return canonical
}

func Compute(root *document.Mapping) (string, error) {
	canonical, err := CanonicalBytes(root)
	if err != nil {
		return "", err
	}
	return jcs.DigestBytes(canonical), nil
}

// Embed hashes root and writes the digest into metadata, creating the
// metadata mapping when absent. A non-mapping metadata value is replaced.
func Embed(root *document.Mapping) (string, error) {
	digest, err := Compute(root)
	if err != nil {
		return "", err
	}
	metadata, ok := root.MappingField(FieldMetadata)
	if !ok {
		metadata = document.NewMapping()
		root.Set(FieldMetadata, metadata)
	}
	metadata.Set(FieldDeterministicHash, document.String(digest))
	return digest, nil
}

// Embedded returns the digest currently recorded in metadata.
func Embedded(root *document.Mapping) (string, bool) {
	metadata, ok := root.MappingField(FieldMetadata)
	if !ok {
		return "", false
	}
	return metadata.StringField(FieldDeterministicHash)
}

type VerifyResult struct {
	OK       bool   `json:"ok"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Verify recomputes the hash and compares it with the embedded value.
// A document without an embedded hash never verifies.
func Verify(root *document.Mapping) (VerifyResult, error) {
	actual, err := Compute(root)
	if err != nil {
		return VerifyResult{}, err
	}
	expected, _ := Embedded(root)
	return VerifyResult{
		OK:       expected != "" && expected == actual,
		Expected: expected,
		Actual:   actual,
	}, nil
}
