package evidence_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/evidence"
	"github.com/Dee66/repo-scanner-sub001/core/resolve"
)

const testCommit = "0123456789abcdef0123456789abcdef01234567"

func newNormalizer(t *testing.T, root string, files ...string) evidence.Normalizer {
	t.Helper()
	return evidence.Normalizer{
		Resolver:    resolve.NewResolver(root, files),
		Commit:      testCommit,
		Parallelism: 2,
	}
}

func decode(t *testing.T, raw string) *document.Mapping {
	t.Helper()
	value, err := document.Decode([]byte(raw))
	require.NoError(t, err)
	mapping, ok := value.(*document.Mapping)
	require.True(t, ok)
	return mapping
}

func marshal(t *testing.T, value document.Value) string {
	t.Helper()
	encoded, err := document.Marshal(value)
	require.NoError(t, err)
	return string(encoded)
}

func findingAt(t *testing.T, root *document.Mapping, collection string, index int) evidence.Finding {
	t.Helper()
	sequence, ok := root.SequenceField(collection)
	require.True(t, ok)
	node, ok := sequence.At(index).(*document.Mapping)
	require.True(t, ok)
	finding, err := evidence.DecodeFinding(node)
	require.NoError(t, err)
	return finding
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		raw  string
		want evidence.Severity
		ok   bool
		high bool
	}{
		{raw: "low", want: evidence.SeverityLow, ok: true},
		{raw: "Medium", want: evidence.SeverityMedium, ok: true},
		{raw: " high ", want: evidence.SeverityHigh, ok: true, high: true},
		{raw: "CRITICAL", want: evidence.SeverityCritical, ok: true, high: true},
		{raw: "severe", ok: false},
		{raw: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := evidence.ParseSeverity(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.high, got.IsHigh())
		})
	}
}

func TestNormalizeBareStringEvidence(t *testing.T) {
	root := decode(t, `{"findings":[{"id":"F1","severity":"high","title":"t","evidence":"token = secret"}]}`)

	stats, err := newNormalizer(t, t.TempDir()).Normalize(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FindingsNormalized)
	assert.Equal(t, 1, stats.RecordsNormalized)

	finding := findingAt(t, root, "findings", 0)
	assert.Equal(t, evidence.SeverityHigh, finding.Severity)
	require.Len(t, finding.Evidence, 1)
	record := finding.Evidence[0]
	assert.Equal(t, testCommit, record.RepoCommit)
	assert.Nil(t, record.SourcePath)
	require.NotNil(t, record.Snippet)
	assert.Equal(t, "token = secret", *record.Snippet)
	assert.Nil(t, record.LineRange)
}

func TestNormalizeComputesProvenance(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "src"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "src", "app.py"), []byte("line1\nmatch line\nline3\n"), 0o600))

	root := decode(t, `{"risk":{"nested":[{"severity":"CRITICAL","evidence":[
		{"source_path":"src/app.py","snippet":"match line","detector":"d1"},
		{"source_path":"app.py"},
		{"source_path":"src/app.py","snippet":"absent text"},
		"plain note",
		"",
		null,
		{}
	]}]}}`)

	stats, err := newNormalizer(t, repo, "src/app.py").Normalize(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.RecordsNormalized)
	assert.Equal(t, 3, stats.RecordsWithProvenance)

	risk, _ := root.MappingField("risk")
	nested, _ := risk.SequenceField("nested")
	node := nested.At(0).(*document.Mapping)
	finding, err := evidence.DecodeFinding(node)
	require.NoError(t, err)
	require.Len(t, finding.Evidence, 4)

	precise := finding.Evidence[0]
	require.NotNil(t, precise.SourcePath)
	assert.Equal(t, "src/app.py", *precise.SourcePath)
	assert.Equal(t, [2]int{2, 2}, *precise.LineRange)
	assert.Equal(t, [2]int{6, 16}, *precise.ByteRange)

	viaFileList := finding.Evidence[1]
	assert.Equal(t, "src/app.py", *viaFileList.SourcePath)
	assert.Equal(t, [2]int{1, 3}, *viaFileList.LineRange)
	assert.Equal(t, [2]int{0, 23}, *viaFileList.ByteRange)

	wholeFile := finding.Evidence[2]
	assert.Equal(t, [2]int{1, 3}, *wholeFile.LineRange)

	wrapped := finding.Evidence[3]
	assert.Nil(t, wrapped.SourcePath)
	assert.Equal(t, "plain note", *wrapped.Snippet)

	records, _ := node.SequenceField("evidence")
	detector, ok := records.At(0).(*document.Mapping).StringField("detector")
	assert.True(t, ok)
	assert.Equal(t, "d1", detector)
}

func TestNormalizeUnresolvedPathKeepsRecord(t *testing.T) {
	root := decode(t, `{"findings":[{"severity":"HIGH","evidence":[{"source_path":"missing.go","line_range":[9,9]}]}]}`)

	stats, err := newNormalizer(t, t.TempDir()).Normalize(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UnresolvedPaths)

	finding := findingAt(t, root, "findings", 0)
	require.Len(t, finding.Evidence, 1)
	assert.Equal(t, "missing.go", *finding.Evidence[0].SourcePath)
	assert.Nil(t, finding.Evidence[0].LineRange, "stale ranges must not survive")
	assert.Equal(t, testCommit, finding.Evidence[0].RepoCommit)
}

func TestNormalizeLowSeverityKeepsEvidenceShape(t *testing.T) {
	root := decode(t, `{"findings":[{"severity":"low","evidence":"maybe"},{"severity":"medium","evidence":null},{"severity":"unknown","evidence":"x"}]}`)

	stats, err := newNormalizer(t, t.TempDir()).Normalize(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FindingsNormalized)
	want := `{"findings":[{"evidence":"maybe","severity":"LOW"},{"evidence":null,"severity":"MEDIUM"},{"evidence":"x","severity":"unknown"}]}`
	assert.Equal(t, want, marshal(t, root))
}

func TestNormalizeCanonicalizesSeverityWithoutEvidence(t *testing.T) {
	root := decode(t, `{"structure":{"items":[{"severity":"medium"},{"severity":"High","title":"t"}]}}`)

	stats, err := newNormalizer(t, t.TempDir()).Normalize(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FindingsNormalized)
	assert.Equal(t, `{"structure":{"items":[{"severity":"MEDIUM"},{"severity":"HIGH","title":"t"}]}}`, marshal(t, root))
}

func TestNormalizeEmptyEvidenceShapes(t *testing.T) {
	root := decode(t, `{"a":[
		{"severity":"high","evidence":null},
		{"severity":"high","evidence":""},
		{"severity":"high","evidence":[]},
		{"severity":"high","evidence":{}}
	]}`)
	_, err := newNormalizer(t, t.TempDir()).Normalize(context.Background(), root)
	require.NoError(t, err)
	for index := 0; index < 4; index++ {
		finding := findingAt(t, root, "a", index)
		assert.Empty(t, finding.Evidence)
	}
	assert.Equal(t, `{"a":[{"evidence":[],"severity":"HIGH"},{"evidence":[],"severity":"HIGH"},{"evidence":[],"severity":"HIGH"},{"evidence":[],"severity":"HIGH"}]}`, marshal(t, root))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o600))
	root := decode(t, `{"findings":[
		{"severity":"high","evidence":[{"source_path":"main.go","snippet":"func main"}]},
		{"severity":"critical","evidence":"bare"},
		{"severity":"high","evidence":[{"source_path":"`+filepath.ToSlash(filepath.Join(repo, "main.go"))+`"}]}
	]}`)
	normalizer := newNormalizer(t, repo)

	_, err := normalizer.Normalize(context.Background(), root)
	require.NoError(t, err)
	first := marshal(t, root)

	_, err = normalizer.Normalize(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, first, marshal(t, root))

	finding := findingAt(t, root, "findings", 2)
	assert.Equal(t, "main.go", *finding.Evidence[0].SourcePath)
}

func TestNormalizeUnknownCommitSentinel(t *testing.T) {
	root := decode(t, `{"findings":[{"severity":"HIGH","evidence":["x"]}]}`)
	normalizer := evidence.Normalizer{Resolver: resolve.NewResolver(t.TempDir(), nil)}
	_, err := normalizer.Normalize(context.Background(), root)
	require.NoError(t, err)
	finding := findingAt(t, root, "findings", 0)
	assert.Equal(t, resolve.UnknownCommit, finding.Evidence[0].RepoCommit)
}

func TestNormalizeHonorsCancellation(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "a.txt"), []byte("a"), 0o600))
	root := decode(t, `{"findings":[{"severity":"HIGH","evidence":[{"source_path":"a.txt"}]}]}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newNormalizer(t, repo).Normalize(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvidenceLocation(t *testing.T) {
	path := "a/b.go"
	assert.Equal(t, "", evidence.Evidence{}.Location())
	assert.Equal(t, "a/b.go", evidence.Evidence{SourcePath: &path}.Location())
	assert.Equal(t, "a/b.go:3", evidence.Evidence{SourcePath: &path, LineRange: &[2]int{3, 3}}.Location())
	assert.Equal(t, "a/b.go:3-5", evidence.Evidence{SourcePath: &path, LineRange: &[2]int{3, 5}}.Location())
}
