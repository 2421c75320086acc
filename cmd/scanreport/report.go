package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dee66/repo-scanner-sub001/core/engine"
	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
	"github.com/Dee66/repo-scanner-sub001/core/evidence"
	"github.com/Dee66/repo-scanner-sub001/core/provenance"
	"github.com/Dee66/repo-scanner-sub001/core/resolve"
	"github.com/Dee66/repo-scanner-sub001/core/schema/validate"
)

const defaultOutDir = "./scanreport-out"

type reportOutput struct {
	OK                 bool                  `json:"ok"`
	RunID              string                `json:"run_id,omitempty"`
	DeterministicHash  string                `json:"deterministic_hash,omitempty"`
	Revision           string                `json:"revision,omitempty"`
	MachinePath        string                `json:"machine_path,omitempty"`
	NarrativePath      string                `json:"narrative_path,omitempty"`
	HistoryPath        string                `json:"history_path,omitempty"`
	FindingsNormalized int                   `json:"findings_normalized"`
	RecordsProvenance  int                   `json:"records_with_provenance"`
	UnresolvedPaths    int                   `json:"unresolved_paths"`
	SuppressedFindings int                   `json:"suppressed_findings"`
	Diagnostics        []validate.Diagnostic `json:"diagnostics,omitempty"`
	errorFields
}

type reportFlags struct {
	input           string
	root            string
	files           string
	repositoryName  string
	schema          string
	schemaDir       string
	validatorMode   string
	validatorEngine string
	outDir          string
	scannerVersion  string
	collections     []string
	parallelism     int
	revisionTimeout time.Duration
	maxFileBytes    int64
	runID           string
	timestamp       string
}

func newReportCommand(state *cli) *cobra.Command {
	flags := &reportFlags{}
	command := &cobra.Command{
		Use:   "report",
		Short: "Normalize evidence and write the machine and narrative reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state.exitCode = state.runReport(cmd, flags)
			return nil
		},
	}
	command.Flags().StringVar(&flags.input, "input", "", "analysis document (JSON or YAML)")
	command.Flags().StringVar(&flags.root, "root", ".", "repository root the evidence refers to")
	command.Flags().StringVar(&flags.files, "files", "", "repository file list (JSON array or one path per line); defaults to the input's files entries")
	command.Flags().StringVar(&flags.repositoryName, "name", "", "repository name; defaults to the root directory name")
	command.Flags().StringVar(&flags.schema, "schema", "", "schema name to validate the machine output against")
	command.Flags().StringVar(&flags.schemaDir, "schema-dir", validate.DefaultSchemaDir, "schema directory")
	command.Flags().StringVar(&flags.validatorMode, "validator-mode", string(validate.ModeFull), "validator mode: full or fallback")
	command.Flags().StringVar(&flags.validatorEngine, "validator-engine", string(validate.EngineKaptinlin), "validator engine: kaptinlin or santhosh")
	command.Flags().StringVar(&flags.outDir, "out-dir", defaultOutDir, "output directory")
	command.Flags().StringVar(&flags.scannerVersion, "scanner-version", "", "scanner version recorded in metadata")
	command.Flags().StringSliceVar(&flags.collections, "collections", nil, "root collections subject to the evidence-first filter")
	command.Flags().IntVar(&flags.parallelism, "parallelism", 0, fmt.Sprintf("provenance workers; 0 uses the default of %d", evidence.DefaultParallelism))
	command.Flags().DurationVar(&flags.revisionTimeout, "revision-timeout", 0, fmt.Sprintf("timeout for the repository revision query; 0 uses %s", resolve.DefaultRevisionTimeout))
	command.Flags().Int64Var(&flags.maxFileBytes, "max-file-bytes", 0, fmt.Sprintf("largest file read for provenance; 0 uses the %d MiB default", provenance.DefaultMaxFileBytes>>20))
	command.Flags().StringVar(&flags.runID, "run-id", "", "run id override")
	command.Flags().StringVar(&flags.timestamp, "timestamp", "", "run timestamp (RFC3339) or now; defaults to a fixed placeholder")
	return command
}

func (state *cli) runReport(cmd *cobra.Command, flags *reportFlags) int {
	fail := func(err error, fallback int) int {
		exitCode := exitCodeForError(err, fallback)
		if state.jsonOutput {
			return writeJSONOutput(state.stdout, reportOutput{OK: false, errorFields: errorEnvelope(err)}, exitCode)
		}
		return writeTextError(state.stderr, "report", err, exitCode)
	}

	if strings.TrimSpace(flags.input) == "" {
		return fail(coreerrors.New("--input is required", coreerrors.CategoryInvalidInput, "input_required", "pass --input <analysis.json>"), exitInvalidInput)
	}
	defaults := state.config.Report
	changed := cmd.Flags().Changed

	options := engine.Options{
		Root:           flags.root,
		RepositoryName: flags.repositoryName,
		RunID:          flags.runID,
		Logger:         state.logger,
	}
	options.Schema = pickString(changed("schema"), flags.schema, defaults.Schema)
	options.ScannerVersion = pickString(changed("scanner-version"), flags.scannerVersion, defaults.ScannerVersion)
	if options.ScannerVersion == "" {
		options.ScannerVersion = version
	}
	options.Collections = defaults.Collections
	if changed("collections") || len(options.Collections) == 0 {
		options.Collections = flags.collections
	}
	options.Parallelism = defaults.Parallelism
	if changed("parallelism") || options.Parallelism == 0 {
		options.Parallelism = flags.parallelism
	}
	options.MaxFileBytes = defaults.MaxFileBytes
	if changed("max-file-bytes") || options.MaxFileBytes == 0 {
		options.MaxFileBytes = flags.maxFileBytes
	}
	revisionTimeout, err := defaults.RevisionTimeoutDuration()
	if err != nil {
		return fail(coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, "config_invalid", "", false), exitInvalidInput)
	}
	options.RevisionTimeout = revisionTimeout
	if changed("revision-timeout") || revisionTimeout == 0 {
		options.RevisionTimeout = flags.revisionTimeout
	}
	if options.Parallelism < 0 || options.MaxFileBytes < 0 || options.RevisionTimeout < 0 {
		return fail(coreerrors.New("--parallelism, --max-file-bytes and --revision-timeout must not be negative", coreerrors.CategoryInvalidInput, "flag_invalid", ""), exitInvalidInput)
	}
	timestamp, err := parseTimestamp(flags.timestamp)
	if err != nil {
		return fail(err, exitInvalidInput)
	}
	options.Timestamp = timestamp

	if options.Schema != "" {
		validator, err := validate.New(validate.Options{
			SchemaDir: pickString(changed("schema-dir"), flags.schemaDir, defaults.SchemaDir),
			Mode:      validate.Mode(pickString(changed("validator-mode"), flags.validatorMode, defaults.ValidatorMode)),
			Engine:    validate.Engine(pickString(changed("validator-engine"), flags.validatorEngine, defaults.ValidatorEngine)),
		})
		if err != nil {
			return fail(err, exitInvalidInput)
		}
		options.Validator = validator
	}

	input, err := engine.LoadDocument(flags.input)
	if err != nil {
		return fail(err, exitInvalidInput)
	}
	options.Input = input
	if strings.TrimSpace(flags.files) != "" {
		files, err := engine.LoadFileList(flags.files)
		if err != nil {
			return fail(err, exitInvalidInput)
		}
		options.Files = files
	}

	result, err := engine.Run(cmd.Context(), options)
	if err != nil {
		exitCode := exitCodeForError(err, exitInternalFailure)
		if state.jsonOutput {
			return writeJSONOutput(state.stdout, reportOutput{OK: false, Diagnostics: result.Diagnostics, errorFields: errorEnvelope(err)}, exitCode)
		}
		for _, diagnostic := range result.Diagnostics {
			_, _ = fmt.Fprintf(state.stderr, "  %s\n", diagnostic)
		}
		return writeTextError(state.stderr, "report", err, exitCode)
	}

	outDir := pickString(changed("out-dir"), flags.outDir, defaults.OutDir)
	artifacts, err := engine.WriteArtifacts(outDir, result)
	if err != nil {
		return fail(err, exitInternalFailure)
	}

	output := reportOutput{
		OK:                 true,
		RunID:              result.RunID,
		DeterministicHash:  result.Hash,
		Revision:           result.Revision.ID,
		MachinePath:        artifacts.MachinePath,
		NarrativePath:      artifacts.NarrativePath,
		HistoryPath:        artifacts.HistoryPath,
		FindingsNormalized: result.Normalization.FindingsNormalized,
		RecordsProvenance:  result.Normalization.RecordsWithProvenance,
		UnresolvedPaths:    result.Normalization.UnresolvedPaths,
		SuppressedFindings: result.Policy.Count(),
	}
	if state.jsonOutput {
		return writeJSONOutput(state.stdout, output, exitOK)
	}
	_, _ = fmt.Fprintf(state.stdout, "report: run_id=%s hash=%s revision=%s\n", output.RunID, output.DeterministicHash, output.Revision)
	_, _ = fmt.Fprintf(state.stdout, "machine: %s\n", output.MachinePath)
	_, _ = fmt.Fprintf(state.stdout, "narrative: %s\n", output.NarrativePath)
	_, _ = fmt.Fprintf(state.stdout, "findings_normalized=%d records_with_provenance=%d unresolved_paths=%d suppressed_findings=%d\n",
		output.FindingsNormalized, output.RecordsProvenance, output.UnresolvedPaths, output.SuppressedFindings)
	return exitOK
}

// pickString prefers an explicitly set flag, then the config value, then the
// flag default.
func pickString(flagChanged bool, flagValue string, configValue string) string {
	if flagChanged || strings.TrimSpace(configValue) == "" {
		return strings.TrimSpace(flagValue)
	}
	return strings.TrimSpace(configValue)
}

func parseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	switch trimmed {
	case "":
		return time.Time{}, nil
	case "now":
		return time.Now().UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, coreerrors.Wrap(fmt.Errorf("parse --timestamp: %w", err), coreerrors.CategoryInvalidInput, "timestamp_invalid", "use RFC3339, for example 2026-01-02T15:04:05Z", false)
	}
	return parsed, nil
}
