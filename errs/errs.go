// Package errs defines the failure kinds a codewizard run can end with.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. The CLI picks the exit code from it.
type Kind int

const (
	Unknown Kind = iota
	Configuration
	InputRead
	Connection
	Auth
	Timeout
	Cancelled
	MalformedResponse
	Provider
	OutputWrite
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration error"
	case InputRead:
		return "input read error"
	case Connection:
		return "backend connection error"
	case Auth:
		return "backend auth error"
	case Timeout:
		return "backend timeout"
	case Cancelled:
		return "cancelled"
	case MalformedResponse:
		return "malformed backend response"
	case Provider:
		return "backend error"
	case OutputWrite:
		return "output write error"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfiguration     = &Error{Kind: Configuration}
	ErrInputRead         = &Error{Kind: InputRead}
	ErrConnection        = &Error{Kind: Connection}
	ErrAuth              = &Error{Kind: Auth}
	ErrTimeout           = &Error{Kind: Timeout}
	ErrCancelled         = &Error{Kind: Cancelled}
	ErrMalformedResponse = &Error{Kind: MalformedResponse}
	ErrProvider          = &Error{Kind: Provider}
	ErrOutputWrite       = &Error{Kind: OutputWrite}
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "read input"
	Backend string // backend name, set for backend failures
	Err     error
}

// E builds an *Error of the given kind.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error whose cause is a formatted message.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithBackend returns a copy of e tagged with the backend name.
func (e *Error) WithBackend(name string) *Error {
	c := *e
	c.Backend = name
	return &c
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Backend != "" {
		parts = append(parts, e.Backend)
	}
	parts = append(parts, e.Kind.String())
	msg := strings.Join(parts, ": ")
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Backend != "" || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case Is(err, Configuration):
		return 2
	default:
		return 1
	}
}
