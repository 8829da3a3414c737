// Package apierr defines the error kinds this system distinguishes: a
// Code enum plus a structured error type, with the codes the fuzzy
// index and its stores actually need instead of generic HTTP-flavored
// ones.
package apierr

import "fmt"

// Code identifies one of the error kinds this system distinguishes.
type Code string

const (
	// CodeEmptyInput: a fuzzy index build was invoked with no
	// documents. Recovered locally by treating the index as null.
	CodeEmptyInput Code = "EMPTY_INPUT"
	// CodeStoreBusy: transient contention on the cache or mapping
	// store. Recovered locally by sleep + retry, unbounded.
	CodeStoreBusy Code = "STORE_BUSY"
	// CodeUnserializable: a bundle contains values that cannot be
	// encoded. Recovered by storing a null blob for that artist.
	CodeUnserializable Code = "UNSERIALIZABLE"
	// CodeWorkerFatal: an unexpected error in a bulk-build worker.
	// Surfaced to the dispatcher, which aborts the whole run.
	CodeWorkerFatal Code = "WORKER_FATAL"
	// CodeNotFound: a cache lookup miss. Not an error condition by
	// itself; it triggers a build. Kept here for callers that want to
	// distinguish "miss" from "hit" without a second return value.
	CodeNotFound Code = "NOT_FOUND"
)

// Error is a structured error carrying one of the Code values above.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is against a bare Code value comparison by
// matching on Code equality, so callers can do
// errors.Is(err, &apierr.Error{Code: apierr.CodeStoreBusy}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// EmptyInput, StoreBusy, Unserializable, WorkerFatal, and NotFound are
// sentinel instances for use with errors.Is.
var (
	EmptyInput     = New(CodeEmptyInput, "no documents to build an index from")
	StoreBusy      = New(CodeStoreBusy, "store is transiently busy")
	Unserializable = New(CodeUnserializable, "value cannot be serialized")
	WorkerFatal    = New(CodeWorkerFatal, "worker encountered a fatal error")
	NotFound       = New(CodeNotFound, "key not found in store")
)
