package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/engine"
	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
	"github.com/Dee66/repo-scanner-sub001/internal/testutil"
)

func TestLoadDocumentJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "analysis.json")
	yamlPath := filepath.Join(dir, "analysis.yml")
	testutil.WriteFile(t, jsonPath, []byte(`{"findings":[{"severity":"high","evidence":"x"}]}`))
	testutil.WriteFile(t, yamlPath, []byte("findings:\n  - severity: high\n    evidence: x\n"))

	fromJSON, err := engine.LoadDocument(jsonPath)
	require.NoError(t, err)
	fromYAML, err := engine.LoadDocument(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, mustMarshal(t, fromJSON), mustMarshal(t, fromYAML))
}

func TestLoadDocumentErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := engine.LoadDocument(filepath.Join(dir, "missing.json"))
	assert.Equal(t, coreerrors.CategoryIOFailure, coreerrors.CategoryOf(err))

	broken := filepath.Join(dir, "broken.json")
	testutil.WriteFile(t, broken, []byte(`{"findings": [`))
	_, err = engine.LoadDocument(broken)
	assert.Equal(t, coreerrors.CategoryInvalidInput, coreerrors.CategoryOf(err))
}

func TestLoadFileList(t *testing.T) {
	dir := t.TempDir()
	jsonList := filepath.Join(dir, "files.json")
	textList := filepath.Join(dir, "files.txt")
	testutil.WriteFile(t, jsonList, []byte(` ["b/x.go", "a/y.go"] `))
	testutil.WriteFile(t, textList, []byte("# generated\nb/x.go\n\n  a/y.go  \r\n"))

	fromJSON, err := engine.LoadFileList(jsonList)
	require.NoError(t, err)
	fromText, err := engine.LoadFileList(textList)
	require.NoError(t, err)
	assert.Equal(t, []string{"b/x.go", "a/y.go"}, fromJSON)
	assert.Equal(t, fromJSON, fromText)

	testutil.WriteFile(t, jsonList, []byte(`[1, 2]`))
	_, err = engine.LoadFileList(jsonList)
	assert.Equal(t, coreerrors.CategoryInvalidInput, coreerrors.CategoryOf(err))
}

func TestWriteArtifacts(t *testing.T) {
	repo := writeRepo(t)
	result, err := engine.Run(context.Background(), options(t, repo))
	require.NoError(t, err)

	outDir := filepath.Join(t.TempDir(), "out")
	artifacts, err := engine.WriteArtifacts(outDir, result)
	require.NoError(t, err)
	_, err = engine.WriteArtifacts(outDir, result)
	require.NoError(t, err)

	machine, err := os.ReadFile(artifacts.MachinePath)
	require.NoError(t, err)
	assert.Equal(t, result.Machine, machine)
	narrative, err := os.ReadFile(artifacts.NarrativePath)
	require.NoError(t, err)
	assert.Equal(t, result.Narrative, narrative)
	assert.Equal(t, engine.NarrativeFileName, filepath.Base(artifacts.NarrativePath))

	history, err := os.ReadFile(artifacts.HistoryPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(history)), "\n")
	require.Len(t, lines, 2)
	entry, err := document.Decode([]byte(lines[0]))
	require.NoError(t, err)
	digest, _ := entry.(*document.Mapping).StringField("deterministic_hash")
	assert.Equal(t, result.Hash, digest)
}

func TestWriteArtifactsReturnsAbsolutePaths(t *testing.T) {
	repo := writeRepo(t)
	result, err := engine.Run(context.Background(), options(t, repo))
	require.NoError(t, err)

	workDir := t.TempDir()
	t.Chdir(workDir)
	artifacts, err := engine.WriteArtifacts("out", result)
	require.NoError(t, err)

	for _, path := range []string{artifacts.MachinePath, artifacts.NarrativePath, artifacts.HistoryPath} {
		assert.True(t, filepath.IsAbs(path), "expected absolute path, got %q", path)
		assert.FileExists(t, path)
	}
	assert.Equal(t, engine.MachineFileName, filepath.Base(artifacts.MachinePath))
}

func TestWriteArtifactsRequiresRenderedOutput(t *testing.T) {
	_, err := engine.WriteArtifacts(t.TempDir(), engine.Result{})
	assert.Equal(t, coreerrors.CategoryInternalFailure, coreerrors.CategoryOf(err))
}
