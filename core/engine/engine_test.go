package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/engine"
	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
	"github.com/Dee66/repo-scanner-sub001/core/evidence"
	"github.com/Dee66/repo-scanner-sub001/core/hasher"
	"github.com/Dee66/repo-scanner-sub001/core/schema/validate"
	"github.com/Dee66/repo-scanner-sub001/internal/testutil"
)

const analysisFixture = `{
  "files": ["cmd/main.go", "config/app.yaml"],
  "structure": {"languages": ["go", "yaml"]},
  "findings": [
    {"id": "F1", "severity": "high", "title": "hardcoded credential", "evidence": [{"source_path": "app.yaml", "snippet": "password: hunter2"}]},
    {"id": "F2", "severity": "Critical", "title": "unsubstantiated claim", "evidence": []},
    {"id": "F3", "severity": "critical", "title": "debug flag", "evidence": "debug = true"},
    {"id": "F4", "severity": "low", "title": "style nit", "evidence": []}
  ],
  "risk_synthesis": {"overall": {"severity": "HIGH", "evidence": [{"source_path": "cmd/main.go"}]}},
  "metadata": {"producer": "detectors"}
}`

func writeRepo(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()
	testutil.WriteFile(t, filepath.Join(repo, "cmd", "main.go"), []byte("package main\n\nfunc main() {}\n"))
	testutil.WriteFile(t, filepath.Join(repo, "config", "app.yaml"), []byte("name: demo\npassword: hunter2\n"))
	return repo
}

func decode(t *testing.T, raw string) document.Value {
	t.Helper()
	value, err := document.Decode([]byte(raw))
	require.NoError(t, err)
	return value
}

func options(t *testing.T, repo string) engine.Options {
	t.Helper()
	return engine.Options{
		Input:          decode(t, analysisFixture),
		Root:           repo,
		Files:          []string{"cmd/main.go", "config/app.yaml"},
		RepositoryName: "demo",
		Parallelism:    3,
	}
}

func TestRunIsDeterministic(t *testing.T) {
	repo := writeRepo(t)

	first, err := engine.Run(context.Background(), options(t, repo))
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), options(t, repo))
	require.NoError(t, err)

	assert.Equal(t, string(first.Machine), string(second.Machine))
	assert.Equal(t, string(first.Narrative), string(second.Narrative))
	assert.Equal(t, first.RunID, second.RunID)
	assert.Len(t, first.Hash, 64)

	reparsed, err := document.Decode(first.Machine)
	require.NoError(t, err)
	verified, err := hasher.Verify(reparsed.(*document.Mapping))
	require.NoError(t, err)
	assert.True(t, verified.OK, "embedded hash must verify after a round trip")
}

func TestRunEnforcesEvidenceFirst(t *testing.T) {
	repo := writeRepo(t)
	result, err := engine.Run(context.Background(), options(t, repo))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Policy.Count())
	assert.Equal(t, "/findings/1", result.Policy.Dropped[0].Pointer)

	findings, ok := result.Document.SequenceField("findings")
	require.True(t, ok)
	require.Equal(t, 3, findings.Len())

	credential, err := evidence.DecodeFinding(findings.At(0).(*document.Mapping))
	require.NoError(t, err)
	require.Len(t, credential.Evidence, 1)
	record := credential.Evidence[0]
	assert.Equal(t, "config/app.yaml", *record.SourcePath)
	assert.Equal(t, [2]int{2, 2}, *record.LineRange)
	assert.Equal(t, [2]int{11, 28}, *record.ByteRange)
	assert.Equal(t, "unknown-commit", record.RepoCommit)

	debug, err := evidence.DecodeFinding(findings.At(1).(*document.Mapping))
	require.NoError(t, err)
	assert.Equal(t, evidence.SeverityCritical, debug.Severity)
	assert.Equal(t, "debug = true", *debug.Evidence[0].Snippet)

	risk, _ := result.Document.MappingField("risk_synthesis")
	overall, _ := risk.MappingField("overall")
	overallFinding, err := evidence.DecodeFinding(overall)
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 3}, *overallFinding.Evidence[0].LineRange)

	assert.Equal(t, 2, result.Normalization.RecordsWithProvenance)
	assert.Contains(t, string(result.Narrative), "`config/app.yaml:2`")
}

func TestRunFallsBackToDocumentFileList(t *testing.T) {
	repo := writeRepo(t)
	opts := options(t, repo)
	opts.Files = nil

	result, err := engine.Run(context.Background(), opts)
	require.NoError(t, err)

	findings, ok := result.Document.SequenceField("findings")
	require.True(t, ok)
	credential, err := evidence.DecodeFinding(findings.At(0).(*document.Mapping))
	require.NoError(t, err)
	require.Len(t, credential.Evidence, 1)
	record := credential.Evidence[0]
	assert.Equal(t, "config/app.yaml", *record.SourcePath)
	assert.Equal(t, [2]int{11, 28}, *record.ByteRange)
}

func TestRunAssemblesRootFields(t *testing.T) {
	repo := writeRepo(t)
	result, err := engine.Run(context.Background(), options(t, repo))
	require.NoError(t, err)
	root := result.Document

	runID, _ := root.StringField("run_id")
	assert.Equal(t, result.RunID, runID)

	repository, ok := root.MappingField("repository")
	require.True(t, ok)
	name, _ := repository.StringField("name")
	path, _ := repository.StringField("path")
	assert.Equal(t, "demo", name)
	assert.Equal(t, filepath.ToSlash(repo), path)

	summary, ok := root.MappingField("summary")
	require.True(t, ok)
	assert.Equal(t, `{"by_severity":{"CRITICAL":1,"HIGH":2,"LOW":1,"MEDIUM":0},"suppressed_findings":1,"total_findings":4}`, mustMarshal(t, summary))

	metadata, ok := root.MappingField("metadata")
	require.True(t, ok)
	producer, _ := metadata.StringField("producer")
	version, _ := metadata.StringField("scanner_version")
	timestamp, _ := metadata.StringField("run_timestamp")
	digest, _ := metadata.StringField("deterministic_hash")
	assert.Equal(t, "detectors", producer)
	assert.Equal(t, engine.DefaultScannerVersion, version)
	assert.Equal(t, engine.PlaceholderTimestamp, timestamp)
	assert.Equal(t, result.Hash, digest)
}

func TestRunKeepsSuppliedSummary(t *testing.T) {
	repo := writeRepo(t)
	opts := options(t, repo)
	opts.Input.(*document.Mapping).Set("summary", decode(t, `{"headline":"ok"}`))

	result, err := engine.Run(context.Background(), opts)
	require.NoError(t, err)
	summary, _ := result.Document.MappingField("summary")
	assert.Equal(t, `{"headline":"ok","suppressed_findings":1}`, mustMarshal(t, summary))
}

func TestRunDoesNotMutateInput(t *testing.T) {
	repo := writeRepo(t)
	opts := options(t, repo)
	before := mustMarshal(t, opts.Input)

	_, err := engine.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, before, mustMarshal(t, opts.Input))
}

func TestRunOverridesAndVolatileFieldsStayOutOfHash(t *testing.T) {
	repo := writeRepo(t)
	baseline, err := engine.Run(context.Background(), options(t, repo))
	require.NoError(t, err)

	opts := options(t, repo)
	opts.RunID = "run-42"
	opts.Timestamp = time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("x", 3600))
	opts.ScannerVersion = "2.0.0"
	result, err := engine.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, "run-42", result.RunID)
	assert.Equal(t, baseline.Hash, result.Hash)
	metadata, _ := result.Document.MappingField("metadata")
	timestamp, _ := metadata.StringField("run_timestamp")
	assert.Equal(t, "2026-03-01T11:30:00Z", timestamp)
}

func TestRunUsesResolvedRevision(t *testing.T) {
	repo := writeRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o750))
	commit := strings.Repeat("ab", 20)

	opts := options(t, repo)
	opts.RunCommand = func(_ context.Context, dir string, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "git", name)
		assert.Equal(t, []string{"-C", dir, "rev-parse", "HEAD"}, args)
		return []byte(commit + "\n"), nil
	}
	result, err := engine.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, result.Revision.Resolved)
	assert.Contains(t, string(result.Machine), `"repo_commit": "`+commit+`"`)
	assert.NotContains(t, string(result.Machine), "unknown-commit")
}

func TestRunValidatesAgainstNamedSchema(t *testing.T) {
	repo := writeRepo(t)
	validator, err := validate.New(validate.Options{SchemaDir: filepath.Join(testutil.RepoRoot(t), "schemas")})
	require.NoError(t, err)

	opts := options(t, repo)
	opts.Schema = "scan_report"
	opts.Validator = validator
	result, err := engine.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics)
	assert.NotEmpty(t, result.Machine)

	strictDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(strictDir, "strict.schema.json"), []byte(`{"type":"object","required":["governance"]}`))
	strict, err := validate.New(validate.Options{SchemaDir: strictDir, Mode: validate.ModeFallback})
	require.NoError(t, err)
	opts = options(t, repo)
	opts.Schema = "strict"
	opts.Validator = strict
	result, err = engine.Run(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, coreerrors.CategoryValidation, coreerrors.CategoryOf(err))
	assert.Equal(t, []validate.Diagnostic{{Pointer: "", Message: `missing required property "governance"`}}, result.Diagnostics)

	opts.Schema = "absent"
	_, err = engine.Run(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, coreerrors.CategorySchemaMissing, coreerrors.CategoryOf(err))
}

func TestRunRejectsInvalidInput(t *testing.T) {
	repo := writeRepo(t)

	opts := options(t, repo)
	opts.Input = decode(t, `[1,2]`)
	_, err := engine.Run(context.Background(), opts)
	assert.Equal(t, coreerrors.CategoryInvalidInput, coreerrors.CategoryOf(err))

	opts = options(t, repo)
	opts.Root = filepath.Join(repo, "cmd", "main.go")
	_, err = engine.Run(context.Background(), opts)
	assert.Equal(t, coreerrors.CategoryInvalidInput, coreerrors.CategoryOf(err))
}

func TestRunHonorsCancellation(t *testing.T) {
	repo := writeRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Run(ctx, options(t, repo))
	require.Error(t, err)
	assert.Equal(t, coreerrors.CategoryCanceled, coreerrors.CategoryOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func mustMarshal(t *testing.T, value document.Value) string {
	t.Helper()
	encoded, err := document.Marshal(value)
	require.NoError(t, err)
	return string(encoded)
}
