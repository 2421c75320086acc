package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
)

// errorFields is embedded in every command output so failures share one envelope.
type errorFields struct {
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	Retryable     *bool  `json:"retryable,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

func errorEnvelope(err error) errorFields {
	if err == nil {
		return errorFields{}
	}
	retryable := coreerrors.RetryableOf(err)
	return errorFields{
		Error:         err.Error(),
		ErrorCode:     coreerrors.CodeOf(err),
		ErrorCategory: string(coreerrors.CategoryOf(err)),
		Retryable:     &retryable,
		Hint:          coreerrors.HintOf(err),
	}
}

func writeJSONOutput(out io.Writer, output any, exitCode int) int {
	encoded, err := marshalOutputWithErrorEnvelope(output, exitCode)
	if err != nil {
		_, _ = fmt.Fprintln(out, `{"ok":false,"error":"failed to encode output","error_code":"encode_failed","error_category":"internal_failure","retryable":false}`)
		return exitInternalFailure
	}
	_, _ = fmt.Fprintln(out, string(encoded))
	return exitCode
}

// marshalOutputWithErrorEnvelope fills any envelope field the command left
// empty from the exit code.
func marshalOutputWithErrorEnvelope(output any, exitCode int) ([]byte, error) {
	encoded, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	result := map[string]any{}
	if err := json.Unmarshal(encoded, &result); err != nil {
		return nil, err
	}
	errorText := strings.TrimSpace(asString(result["error"]))
	if errorText == "" {
		return json.Marshal(result)
	}
	if strings.TrimSpace(asString(result["error_code"])) == "" {
		result["error_code"] = defaultErrorCode(exitCode)
	}
	if strings.TrimSpace(asString(result["error_category"])) == "" {
		result["error_category"] = string(defaultErrorCategory(exitCode))
	}
	if _, exists := result["retryable"]; !exists {
		category := coreerrors.Category(asString(result["error_category"]))
		result["retryable"] = defaultRetryable(category)
	}
	if strings.TrimSpace(asString(result["hint"])) == "" {
		result["hint"] = defaultHint(exitCode)
	}
	return json.Marshal(result)
}

func writeTextError(out io.Writer, command string, err error, exitCode int) int {
	_, _ = fmt.Fprintf(out, "%s error: %v\n", command, err)
	hint := coreerrors.HintOf(err)
	if hint == "" {
		hint = defaultHint(exitCode)
	}
	_, _ = fmt.Fprintf(out, "hint: %s\n", hint)
	return exitCode
}

func asString(value any) string {
	text, _ := value.(string)
	return text
}
