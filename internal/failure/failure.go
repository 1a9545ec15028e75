/*
Package failure provides the error type every otadrop step returns.

Each error carries a Kind so the command layer can report it uniformly and map
it to an exit code in one place.
*/
package failure

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind classifies why a run was aborted.
type Kind int

const (
	// Precondition is a missing file, directory or tool.
	Precondition Kind = iota + 1
	// Pattern is a metadata value with an unexpected shape.
	Pattern
	// Policy is a bundle that is not fit for distribution.
	Policy
	// Resolution is a signing identity or profile that could not be found.
	Resolution
	// Tool is a non-zero exit from an external command.
	Tool
)

func (k Kind) String() string {
	switch k {
	case Precondition:
		return "precondition"
	case Pattern:
		return "pattern"
	case Policy:
		return "policy"
	case Resolution:
		return "resolution"
	case Tool:
		return "tool"
	default:
		return "unknown"
	}
}

// Error is a terminal failure for the run.
type Error struct {
	Kind    Kind
	Message string
	// Details are "key = value" lines printed under the message.
	Details []string
	// Hint tells the user how to fix the problem.
	Hint string
	Err  error
}

// New creates a failure of the given kind.
func New(kind Kind, message string, details ...string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Details: details,
	}
}

// Wrap creates a failure that keeps err as its cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// WithHint sets the remediation hint and returns e.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", strings.TrimSuffix(e.Message, "."), e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Write reports err to w in the form
//
//	Error: <message>
//	  <detail>
//	       <hint>
func Write(w io.Writer, err error) {
	if err == nil {
		return
	}

	var fe *Error
	if !errors.As(err, &fe) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Error: %s\n", fe.Message)
	for _, d := range fe.Details {
		fmt.Fprintf(w, "  %s\n", d)
	}
	if fe.Hint != "" {
		fmt.Fprintf(w, "       %s\n", fe.Hint)
	}
	if fe.Err != nil {
		for _, line := range strings.Split(strings.TrimSpace(fe.Err.Error()), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
