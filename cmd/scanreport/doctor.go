package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dee66/repo-scanner-sub001/core/doctor"
	"github.com/Dee66/repo-scanner-sub001/core/schema/validate"
)

type doctorOutput struct {
	OK bool `json:"ok"`
	doctor.Result
	errorFields
}

func newDoctorCommand(state *cli) *cobra.Command {
	var workDir, outputDir, schemaDir, validatorEngine string
	command := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local environment and print stable fix suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults := state.config.Report
			changed := cmd.Flags().Changed
			result := doctor.Run(doctor.Options{
				WorkDir:         workDir,
				OutputDir:       pickString(changed("output-dir"), outputDir, defaults.OutDir),
				SchemaDir:       pickString(changed("schema-dir"), schemaDir, defaults.SchemaDir),
				ConfigPath:      state.configPath,
				ProducerVersion: version,
				ValidatorEngine: validate.Engine(pickString(changed("engine"), validatorEngine, defaults.ValidatorEngine)),
			})
			state.exitCode = state.writeDoctor(result)
			return nil
		},
	}
	command.Flags().StringVar(&workDir, "workdir", ".", "workspace path for checks")
	command.Flags().StringVar(&outputDir, "output-dir", defaultOutDir, "output directory to check")
	command.Flags().StringVar(&schemaDir, "schema-dir", validate.DefaultSchemaDir, "schema directory to check")
	command.Flags().StringVar(&validatorEngine, "engine", string(validate.EngineKaptinlin), "engine used to compile the schemas")
	return command
}

func (state *cli) writeDoctor(result doctor.Result) int {
	exitCode := exitOK
	if result.NonFixable {
		exitCode = exitMissingDependency
	}
	if state.jsonOutput {
		output := doctorOutput{OK: exitCode == exitOK, Result: result}
		if exitCode != exitOK {
			output.Error = result.Summary
		}
		return writeJSONOutput(state.stdout, output, exitCode)
	}
	_, _ = fmt.Fprintln(state.stdout, result.Summary)
	for _, check := range result.Checks {
		_, _ = fmt.Fprintf(state.stdout, "- %s: %s (%s)\n", check.Name, check.Status, check.Message)
	}
	for _, fix := range result.FixCommands {
		_, _ = fmt.Fprintf(state.stdout, "fix: %s\n", fix)
	}
	return exitCode
}
