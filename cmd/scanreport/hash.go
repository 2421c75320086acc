package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/engine"
	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
	"github.com/Dee66/repo-scanner-sub001/core/hasher"
)

type hashOutput struct {
	OK       bool   `json:"ok"`
	Hash     string `json:"deterministic_hash,omitempty"`
	Verified *bool  `json:"verified,omitempty"`
	Expected string `json:"expected,omitempty"`
	errorFields
}

func newHashCommand(state *cli) *cobra.Command {
	var input string
	var verify bool
	command := &cobra.Command{
		Use:   "hash",
		Short: "Compute or verify the deterministic hash of a machine report",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			state.exitCode = state.runHash(input, verify)
			return nil
		},
	}
	command.Flags().StringVar(&input, "input", "", "machine report to hash")
	command.Flags().BoolVar(&verify, "verify", false, "compare against the embedded metadata.deterministic_hash")
	return command
}

func (state *cli) runHash(input string, verify bool) int {
	fail := func(err error, fallback int) int {
		exitCode := exitCodeForError(err, fallback)
		if state.jsonOutput {
			return writeJSONOutput(state.stdout, hashOutput{OK: false, errorFields: errorEnvelope(err)}, exitCode)
		}
		return writeTextError(state.stderr, "hash", err, exitCode)
	}
	if strings.TrimSpace(input) == "" {
		return fail(coreerrors.New("--input is required", coreerrors.CategoryInvalidInput, "input_required", "pass --input <scan_report.json>"), exitInvalidInput)
	}
	doc, err := engine.LoadDocument(input)
	if err != nil {
		return fail(err, exitInvalidInput)
	}
	root, ok := doc.(*document.Mapping)
	if !ok {
		return fail(coreerrors.New("report must be a JSON object", coreerrors.CategoryInvalidInput, "input_not_object", ""), exitInvalidInput)
	}

	if !verify {
		digest, err := hasher.Compute(root)
		if err != nil {
			return fail(err, exitInternalFailure)
		}
		if state.jsonOutput {
			return writeJSONOutput(state.stdout, hashOutput{OK: true, Hash: digest}, exitOK)
		}
		_, _ = fmt.Fprintln(state.stdout, digest)
		return exitOK
	}

	result, err := hasher.Verify(root)
	if err != nil {
		return fail(err, exitInternalFailure)
	}
	output := hashOutput{OK: result.OK, Hash: result.Actual, Verified: &result.OK, Expected: result.Expected}
	exitCode := exitOK
	if !result.OK {
		exitCode = exitVerifyFailed
		message := fmt.Sprintf("deterministic hash mismatch: embedded %q, computed %q", result.Expected, result.Actual)
		if result.Expected == "" {
			message = "report has no embedded metadata.deterministic_hash"
		}
		output.errorFields = errorEnvelope(coreerrors.New(message, coreerrors.CategoryVerification, "hash_mismatch", ""))
	}
	if state.jsonOutput {
		return writeJSONOutput(state.stdout, output, exitCode)
	}
	if result.OK {
		_, _ = fmt.Fprintf(state.stdout, "hash: verified %s\n", result.Actual)
		return exitOK
	}
	_, _ = fmt.Fprintf(state.stdout, "hash: %s\n", output.Error)
	return exitCode
}
