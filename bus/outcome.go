package bus

import (
	"errors"

	"stockflow/schema"
)

type Status int

const (
	StatusDispatched Status = iota + 1
	StatusSkipped
	StatusRejected
	StatusUnprocessable
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDispatched:
		return "dispatched"
	case StatusSkipped:
		return "skipped"
	case StatusRejected:
		return "rejected"
	case StatusUnprocessable:
		return "unprocessable"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is produced exactly once per dispatch attempt. It is never
// persisted; the caller decides what to do with it.
type Outcome struct {
	Status Status

	// Result carries the handler result for StatusDispatched. For events it
	// is the slice of results of the handlers that completed.
	Result any

	// Reason explains a StatusSkipped outcome, human readable.
	Reason string

	// FieldErrors enumerate every offending field for StatusRejected.
	FieldErrors []schema.FieldError

	// Kind and Detail qualify a StatusUnprocessable outcome.
	Kind   string
	Detail string

	// Err is the underlying error for StatusFailed. For events it may join
	// several handler errors without hiding the completions in Result.
	Err error
}

func Dispatched(result any) Outcome {
	return Outcome{Status: StatusDispatched, Result: result}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

func Rejected(fieldErrs []schema.FieldError) Outcome {
	return Outcome{Status: StatusRejected, FieldErrors: fieldErrs}
}

func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// classify maps an error coming out of a precondition or handler onto the
// outcome taxonomy. Skips and unprocessable signals travel as wrapped error
// values, everything else is an internal failure.
func classify(err error) Outcome {
	var skip *SkipError
	if errors.As(err, &skip) {
		return Skipped(skip.Reason)
	}
	var unproc *UnprocessableError
	if errors.As(err, &unproc) {
		return Outcome{Status: StatusUnprocessable, Kind: unproc.Kind, Detail: unproc.Detail, Err: err}
	}
	return Failed(err)
}
