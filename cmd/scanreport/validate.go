package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dee66/repo-scanner-sub001/core/engine"
	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
	"github.com/Dee66/repo-scanner-sub001/core/schema/validate"
)

type validateOutput struct {
	OK          bool                  `json:"ok"`
	Schema      string                `json:"schema,omitempty"`
	Mode        string                `json:"mode,omitempty"`
	Diagnostics []validate.Diagnostic `json:"diagnostics,omitempty"`
	errorFields
}

func newValidateCommand(state *cli) *cobra.Command {
	var schema, input, mode, validatorEngine, schemaDir string
	command := &cobra.Command{
		Use:   "validate",
		Short: "Validate a document against a named schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults := state.config.Report
			changed := cmd.Flags().Changed
			state.exitCode = state.runValidate(
				pickString(changed("schema"), schema, defaults.Schema),
				input,
				validate.Options{
					SchemaDir: pickString(changed("schema-dir"), schemaDir, defaults.SchemaDir),
					Mode:      validate.Mode(pickString(changed("mode"), mode, defaults.ValidatorMode)),
					Engine:    validate.Engine(pickString(changed("engine"), validatorEngine, defaults.ValidatorEngine)),
				},
			)
			return nil
		},
	}
	command.Flags().StringVar(&schema, "schema", "", "schema name, for example scan_report")
	command.Flags().StringVar(&input, "input", "", "document to validate (JSON or YAML)")
	command.Flags().StringVar(&mode, "mode", string(validate.ModeFull), "full or fallback")
	command.Flags().StringVar(&validatorEngine, "engine", string(validate.EngineKaptinlin), "kaptinlin or santhosh")
	command.Flags().StringVar(&schemaDir, "schema-dir", validate.DefaultSchemaDir, "schema directory")
	return command
}

func (state *cli) runValidate(schema string, input string, options validate.Options) int {
	fail := func(err error, fallback int) int {
		exitCode := exitCodeForError(err, fallback)
		if state.jsonOutput {
			return writeJSONOutput(state.stdout, validateOutput{OK: false, Schema: schema, errorFields: errorEnvelope(err)}, exitCode)
		}
		return writeTextError(state.stderr, "validate", err, exitCode)
	}
	if schema == "" || strings.TrimSpace(input) == "" {
		return fail(coreerrors.New("--schema and --input are required", coreerrors.CategoryInvalidInput, "flag_required", "pass --schema <name> --input <path>"), exitInvalidInput)
	}
	validator, err := validate.New(options)
	if err != nil {
		return fail(err, exitInvalidInput)
	}
	doc, err := engine.LoadDocument(input)
	if err != nil {
		return fail(err, exitInvalidInput)
	}
	diagnostics, err := validator.Validate(doc, schema)
	if err != nil {
		return fail(err, exitInternalFailure)
	}

	output := validateOutput{OK: len(diagnostics) == 0, Schema: schema, Mode: string(validator.Mode()), Diagnostics: diagnostics}
	exitCode := exitOK
	if checkErr := validate.DiagnosticsError(schema, diagnostics); checkErr != nil {
		exitCode = exitValidationFailed
		output.errorFields = errorEnvelope(checkErr)
	}
	if state.jsonOutput {
		return writeJSONOutput(state.stdout, output, exitCode)
	}
	if exitCode == exitOK {
		_, _ = fmt.Fprintf(state.stdout, "validate: %s ok (%s)\n", schema, output.Mode)
		return exitOK
	}
	_, _ = fmt.Fprintf(state.stdout, "validate: %s failed (%s), %d diagnostic(s)\n", schema, output.Mode, len(diagnostics))
	for _, diagnostic := range diagnostics {
		_, _ = fmt.Fprintf(state.stdout, "  %s\n", diagnostic)
	}
	return exitCode
}
