package bus

import "fmt"

// Unprocessable kinds boundaries map to their own error representations.
const (
	KindNotFound   = "not_found"
	KindOutOfStock = "out_of_stock"
	KindConflict   = "conflict"
)

// SkipError signals that the requested effect already happened or the message
// is superseded. It is a recognized no-op, not a failure; the dispatcher
// stops processing and commits nothing.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

func Skip(reason string) error { return &SkipError{Reason: reason} }

func Skipf(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// UnprocessableError signals a well-formed message that violates a
// precondition tied to current state. Kind selects the boundary mapping.
type UnprocessableError struct {
	Kind   string
	Detail string
}

func (e *UnprocessableError) Error() string { return e.Kind + ": " + e.Detail }

func Unprocessable(kind, detail string) error {
	return &UnprocessableError{Kind: kind, Detail: detail}
}

func Unprocessablef(kind, format string, args ...any) error {
	return &UnprocessableError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
