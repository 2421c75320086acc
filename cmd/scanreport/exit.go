package main

import (
	"context"
	stderrors "errors"

	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
)

const (
	exitOK                = 0
	exitInternalFailure   = 1
	exitVerifyFailed      = 2
	exitValidationFailed  = 3
	exitInvalidInput      = 6
	exitMissingDependency = 7
	exitCanceled          = 130
)

func exitCodeForError(err error, fallbackExit int) int {
	if err == nil {
		return exitOK
	}
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryInvalidInput:
		return exitInvalidInput
	case coreerrors.CategoryValidation:
		return exitValidationFailed
	case coreerrors.CategoryVerification:
		return exitVerifyFailed
	case coreerrors.CategorySchemaMissing, coreerrors.CategoryDependencyMissing:
		return exitMissingDependency
	case coreerrors.CategoryCanceled:
		return exitCanceled
	case coreerrors.CategoryIOFailure, coreerrors.CategoryInternalFailure:
		return exitInternalFailure
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return exitCanceled
	}
	return fallbackExit
}

func defaultErrorCategory(exitCode int) coreerrors.Category {
	switch exitCode {
	case exitInvalidInput:
		return coreerrors.CategoryInvalidInput
	case exitValidationFailed:
		return coreerrors.CategoryValidation
	case exitVerifyFailed:
		return coreerrors.CategoryVerification
	case exitMissingDependency:
		return coreerrors.CategoryDependencyMissing
	case exitCanceled:
		return coreerrors.CategoryCanceled
	default:
		return coreerrors.CategoryInternalFailure
	}
}

func defaultErrorCode(exitCode int) string {
	return string(defaultErrorCategory(exitCode))
}

func defaultHint(exitCode int) string {
	switch exitCode {
	case exitInvalidInput:
		return "check command usage and input document"
	case exitValidationFailed:
		return "fix the reported schema diagnostics and rerun"
	case exitVerifyFailed:
		return "the document changed after hashing; regenerate it with scanreport report"
	case exitMissingDependency:
		return "install or configure the missing dependency and retry"
	case exitCanceled:
		return "rerun without interrupting"
	default:
		return "retry after checking local environment and logs"
	}
}

func defaultRetryable(category coreerrors.Category) bool {
	return category == coreerrors.CategoryIOFailure || category == coreerrors.CategoryCanceled
}
