// Package engine turns an analysis document into the evidence-first machine
// output and its narrative companion.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
	"github.com/Dee66/repo-scanner-sub001/core/evidence"
	"github.com/Dee66/repo-scanner-sub001/core/hasher"
	"github.com/Dee66/repo-scanner-sub001/core/logging"
	"github.com/Dee66/repo-scanner-sub001/core/policy"
	"github.com/Dee66/repo-scanner-sub001/core/provenance"
	"github.com/Dee66/repo-scanner-sub001/core/report"
	"github.com/Dee66/repo-scanner-sub001/core/resolve"
	"github.com/Dee66/repo-scanner-sub001/core/schema/validate"
)

const (
	DefaultScannerVersion = "0.0.0-dev"
	PlaceholderTimestamp  = "1970-01-01T00:00:00Z"
)

// runIDNamespace seeds name-based run ids so identical content gets the same id.
var runIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Dee66/repo-scanner-sub001/run"))

type Options struct {
	Input document.Value
	Root  string
	// Files is the canonical file list for suffix resolution. When empty, the
	// string entries of the input document's root files sequence are used.
	Files          []string
	RepositoryName string

	Collections     []string
	Parallelism     int
	RevisionTimeout time.Duration
	MaxFileBytes    int64
	// RunCommand replaces the git invocation used for the revision query.
	RunCommand resolve.CommandRunner

	ScannerVersion string
	RunID          string
	Timestamp      time.Time

	// Schema names the schema to validate against; empty skips validation.
	Schema    string
	Validator *validate.Validator

	Logger *zap.Logger
}

// Context is everything a single run shares between its stages.
type Context struct {
	Root         string
	Resolver     resolve.Resolver
	Revision     resolve.Revision
	Parallelism  int
	MaxFileBytes int64
	Logger       *zap.Logger
}

type Result struct {
	Document      *document.Mapping
	Machine       []byte
	Narrative     []byte
	Hash          string
	RunID         string
	Revision      resolve.Revision
	Normalization evidence.Stats
	Policy        policy.Report
	Diagnostics   []validate.Diagnostic
}

// NewContext resolves the repository root and its revision once per run.
func NewContext(ctx context.Context, options Options) (*Context, error) {
	root := strings.TrimSpace(options.Root)
	if root == "" {
		root = "."
	}
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("resolve repository root: %w", err), coreerrors.CategoryInvalidInput, "root_invalid", "", false)
	}
	info, err := os.Stat(absoluteRoot)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", absoluteRoot)
		}
		return nil, coreerrors.Wrap(
			fmt.Errorf("repository root: %w", err),
			coreerrors.CategoryInvalidInput, "root_invalid", "pass --root pointing at the scanned repository", false,
		)
	}

	logger := logging.OrNop(options.Logger)
	revision := resolve.RevisionResolver{Timeout: options.RevisionTimeout, Run: options.RunCommand}.Resolve(ctx, absoluteRoot)
	if !revision.Resolved {
		logger.Debug("repository revision unavailable", zap.String("root", absoluteRoot), zap.Error(revision.Err))
	}
	return &Context{
		Root:         absoluteRoot,
		Resolver:     resolve.NewResolver(absoluteRoot, options.Files),
		Revision:     revision,
		Parallelism:  options.Parallelism,
		MaxFileBytes: options.MaxFileBytes,
		Logger:       logger,
	}, nil
}

// Run normalizes evidence, applies the evidence-first filter, assembles and
// hashes the machine output, optionally validates it and renders both
// outputs. The input document is never modified.
func Run(ctx context.Context, options Options) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	input, ok := options.Input.(*document.Mapping)
	if !ok || input == nil {
		return Result{}, coreerrors.New(
			"analysis document must be a JSON object",
			coreerrors.CategoryInvalidInput, "input_not_object", "pass an analysis document whose root is an object",
		)
	}
	if len(options.Files) == 0 {
		options.Files = documentFiles(input)
	}
	runContext, err := NewContext(ctx, options)
	if err != nil {
		return Result{}, err
	}
	logger := runContext.Logger
	root := document.Clone(input).(*document.Mapping)

	stats, err := evidence.Normalizer{
		Resolver:    runContext.Resolver,
		Commit:      runContext.Revision.ID,
		Provenance:  provenance.Calculator{MaxFileBytes: runContext.MaxFileBytes},
		Parallelism: runContext.Parallelism,
		Logger:      logger,
	}.Normalize(ctx, root)
	if err != nil {
		return Result{}, canceled(err)
	}
	dropped := policy.Filter{Collections: options.Collections, Logger: logger}.Apply(root)

	assemble(root, runContext, options, dropped)
	digest, err := hasher.Embed(root)
	if err != nil {
		return Result{}, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "hash_failed", "", false)
	}
	runID := strings.TrimSpace(options.RunID)
	if runID == "" {
		runID = uuid.NewSHA1(runIDNamespace, []byte(digest)).String()
	}
	root.Set("run_id", document.String(runID))

	result := Result{
		Document:      root,
		Hash:          digest,
		RunID:         runID,
		Revision:      runContext.Revision,
		Normalization: stats,
		Policy:        dropped,
	}
	logger.Info("evidence normalized",
		zap.String("run_id", runID),
		zap.String("revision", runContext.Revision.ID),
		zap.Int("findings_normalized", stats.FindingsNormalized),
		zap.Int("records_with_provenance", stats.RecordsWithProvenance),
		zap.Int("unresolved_paths", stats.UnresolvedPaths),
		zap.Int("suppressed_findings", dropped.Count()),
	)

	if schema := strings.TrimSpace(options.Schema); schema != "" {
		validator := options.Validator
		if validator == nil {
			validator, err = validate.New(validate.Options{})
			if err != nil {
				return result, err
			}
		}
		diagnostics, err := validator.Validate(root, schema)
		if err != nil {
			return result, err
		}
		result.Diagnostics = diagnostics
		if err := validate.DiagnosticsError(schema, diagnostics); err != nil {
			return result, err
		}
	}

	result.Machine, err = report.RenderMachine(root)
	if err != nil {
		return result, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "render_machine_failed", "", false)
	}
	result.Narrative, err = report.RenderNarrative(root)
	if err != nil {
		return result, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "render_narrative_failed", "", false)
	}
	return result, nil
}

func canceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return coreerrors.Wrap(err, coreerrors.CategoryCanceled, "run_canceled", "", true)
	}
	return coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "normalize_failed", "", false)
}

// assemble fills the root fields of the machine output around the
// pass-through analysis sections.
func assemble(root *document.Mapping, runContext *Context, options Options, dropped policy.Report) {
	repository, ok := root.MappingField("repository")
	if !ok {
		repository = document.NewMapping()
		root.Set("repository", repository)
	}
	name := strings.TrimSpace(options.RepositoryName)
	if name == "" {
		if existing, ok := repository.StringField("name"); ok && strings.TrimSpace(existing) != "" {
			name = existing
		} else {
			name = filepath.Base(runContext.Root)
		}
	}
	repository.Set("name", document.String(name))
	repository.Set("path", document.String(filepath.ToSlash(runContext.Root)))

	root.Set("summary", Summarize(root, dropped.Count()))

	metadata, ok := root.MappingField(hasher.FieldMetadata)
	if !ok {
		metadata = document.NewMapping()
		root.Set(hasher.FieldMetadata, metadata)
	}
	version := strings.TrimSpace(options.ScannerVersion)
	if version == "" {
		if existing, ok := metadata.StringField("scanner_version"); ok && strings.TrimSpace(existing) != "" {
			version = existing
		} else {
			version = DefaultScannerVersion
		}
	}
	metadata.Set("scanner_version", document.String(version))
	timestamp := PlaceholderTimestamp
	if !options.Timestamp.IsZero() {
		timestamp = options.Timestamp.UTC().Format(time.RFC3339)
	}
	metadata.Set("run_timestamp", document.String(timestamp))
}

func documentFiles(input *document.Mapping) []string {
	sequence, ok := input.SequenceField("files")
	if !ok {
		return nil
	}
	files := make([]string, 0, sequence.Len())
	for _, item := range sequence.Items() {
		if path, ok := item.(document.String); ok && path != "" {
			files = append(files, string(path))
		}
	}
	return files
}
