package predictor

import "fmt"

// InvocationErrorKind classifies failures to run the predictor process.
type InvocationErrorKind string

const (
	// KindPathNotFound means the image path did not resolve to a readable
	// file; no process is started in this case.
	KindPathNotFound InvocationErrorKind = "path_not_found"
	// KindProcessFailed means the process could not be spawned or exited
	// nonzero.
	KindProcessFailed InvocationErrorKind = "process_failed"
)

// InvocationError reports a failed predictor run.
type InvocationError struct {
	Kind     InvocationErrorKind
	Path     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	switch e.Kind {
	case KindPathNotFound:
		return fmt.Sprintf("predictor: image path not found: %s", e.Path)
	default:
		if e.Stderr != "" {
			return fmt.Sprintf("predictor: process failed (exit %d): %s", e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("predictor: process failed: %v", e.Err)
	}
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ValidationErrorKind classifies rejections of predictor output.
type ValidationErrorKind string

const (
	// KindMalformedOutput means the output was not a parsable object.
	KindMalformedOutput ValidationErrorKind = "malformed_output"
	// KindPredictorReportedError means the output carried an explicit error
	// field from the predictor itself.
	KindPredictorReportedError ValidationErrorKind = "predictor_reported_error"
	// KindMissingField means one of the four required scores was absent or
	// non-numeric.
	KindMissingField ValidationErrorKind = "missing_field"
)

// ValidationError reports predictor output that could not be turned into a
// Result.
type ValidationError struct {
	Kind    ValidationErrorKind
	Field   string
	Message string
	Raw     string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindPredictorReportedError:
		return fmt.Sprintf("predictor reported error: %s", e.Message)
	case KindMissingField:
		return fmt.Sprintf("predictor output missing field %q", e.Field)
	default:
		return fmt.Sprintf("malformed predictor output: %s", e.Message)
	}
}
