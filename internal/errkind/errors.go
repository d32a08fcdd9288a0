// Package errkind implements a three-way error taxonomy: invariant
// errors are programmer bugs and must panic, never be recovered; user errors
// (evaluation failures, unit mismatches, unused lanes, length mismatches) are
// recoverable and carry the offending expression/lane/device/cell as
// context; resource errors (worker crashes) are retried by the orchestrator
// according to an allow-list, never inside the algebra or evaluator.
//
// The shape mirrors the teacher's internal/errors package (a Kind, a
// location-like context struct, and WithX builder methods), relabeled to
// this taxonomy.
package errkind

import (
	"fmt"
	"strings"
)

// Kind identifies which of the two recoverable error categories (user or
// resource) a CompileError belongs to. Invariant violations have no Kind:
// they panic through Invariant.
type Kind string

const (
	KindUser     Kind = "UserError"
	KindResource Kind = "ResourceError"
)

// Context names where, in the compilation pipeline, an error occurred.
type Context struct {
	Device     string
	Channel    string
	Lane       string
	CellIndex  int
	HasCell    bool
	Expression string
}

// CompileError is a recoverable error produced by the expression evaluator,
// lane compilers, channel combinators, or the shot compiler facade. It is
// never used for invariant violations: those panic (see Invariant helpers
// below).
type CompileError struct {
	Kind    Kind
	Message string
	Context Context
	Cause   error
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Context.Device != "" {
		fmt.Fprintf(&sb, " (device=%s", e.Context.Device)
		if e.Context.Channel != "" {
			fmt.Fprintf(&sb, " channel=%s", e.Context.Channel)
		}
		if e.Context.Lane != "" {
			fmt.Fprintf(&sb, " lane=%s", e.Context.Lane)
		}
		if e.Context.HasCell {
			fmt.Fprintf(&sb, " cell=%d", e.Context.CellIndex)
		}
		sb.WriteString(")")
	}
	if e.Context.Expression != "" {
		fmt.Fprintf(&sb, " in expression <%s>", e.Context.Expression)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

func (e *CompileError) Unwrap() error { return e.Cause }

// NewUserError builds a recoverable user error.
func NewUserError(message string) *CompileError {
	return &CompileError{Kind: KindUser, Message: message}
}

// NewResourceError builds a recoverable resource error (e.g. a worker crash
// during shot compilation).
func NewResourceError(message string, cause error) *CompileError {
	return &CompileError{Kind: KindResource, Message: message, Cause: cause}
}

// WithCause attaches the underlying cause and returns e for chaining.
func (e *CompileError) WithCause(cause error) *CompileError {
	e.Cause = cause
	return e
}

// WithExpression attaches the offending expression's source text.
func (e *CompileError) WithExpression(expr string) *CompileError {
	e.Context.Expression = expr
	return e
}

// WithDevice attaches the device and channel context as the facade unwinds.
func (e *CompileError) WithDevice(device, channel string) *CompileError {
	e.Context.Device = device
	e.Context.Channel = channel
	return e
}

// WithLane attaches a lane name.
func (e *CompileError) WithLane(lane string) *CompileError {
	e.Context.Lane = lane
	return e
}

// WithCell attaches a lane cell index.
func (e *CompileError) WithCell(index int) *CompileError {
	e.Context.CellIndex = index
	e.Context.HasCell = true
	return e
}

// Invariant panics with a message identifying the violated invariant. It is
// used for the programmer-bug class of error (empty concat,
// dtype mismatch, slice out of range): these are never recovered.
func Invariant(format string, args ...any) {
	panic(fmt.Sprintf("invariant violated: "+format, args...))
}

// RetryAllowed reports whether err is a *CompileError whose Kind is on the
// retry-allow-list. Only the orchestrator consults this; the algebra and
// evaluator never retry internally.
func RetryAllowed(err error, allowList []Kind) bool {
	ce, ok := err.(*CompileError)
	if !ok {
		return false
	}
	for _, k := range allowList {
		if ce.Kind == k {
			return true
		}
	}
	return false
}
