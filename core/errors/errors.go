package errors

import "errors"

type Category string

// Categories describe hard failures only. Soft failures (unresolved paths,
// unreadable evidence files, revision lookups) never become errors.
const (
	CategoryInvalidInput      Category = "invalid_input"
	CategorySchemaMissing     Category = "schema_missing"
	CategoryValidation        Category = "validation_failed"
	CategoryVerification      Category = "verification_failed"
	CategoryDependencyMissing Category = "dependency_missing"
	CategoryIOFailure         Category = "io_failure"
	CategoryCanceled          Category = "canceled"
	CategoryInternalFailure   Category = "internal_failure"
)

// Details is the classification attached to an error by Wrap.
type Details struct {
	Category  Category
	Code      string
	Hint      string
	Retryable bool
}

type classifiedError struct {
	details Details
	cause   error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func Wrap(cause error, category Category, code, hint string, retryable bool) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		details: Details{Category: category, Code: code, Hint: hint, Retryable: retryable},
		cause:   cause,
	}
}

// New classifies a plain message; the result is never retryable.
func New(message string, category Category, code, hint string) error {
	return Wrap(errors.New(message), category, code, hint, false)
}

// DetailsOf returns the outermost classification in err's chain.
func DetailsOf(err error) (Details, bool) {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.details, true
	}
	return Details{}, false
}

// Is reports whether err is classified under category.
func Is(err error, category Category) bool {
	details, ok := DetailsOf(err)
	return ok && details.Category == category
}

func CategoryOf(err error) Category {
	details, _ := DetailsOf(err)
	return details.Category
}

func CodeOf(err error) string {
	details, _ := DetailsOf(err)
	return details.Code
}

func HintOf(err error) string {
	details, _ := DetailsOf(err)
	return details.Hint
}

func RetryableOf(err error) bool {
	details, _ := DetailsOf(err)
	return details.Retryable
}
