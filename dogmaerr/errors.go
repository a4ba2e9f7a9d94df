// Package dogmaerr defines the single tagged error enumeration shared by
// every component of the storage core
package dogmaerr

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure a storage-core operation produced.
type Code int

const (
	_ Code = iota
	RevisionNotFound
	EntryNotFound
	RepositoryExists
	RepositoryNotFound
	ProjectExists
	ProjectNotFound
	ChangeConflict
	RedundantChange
	ReadOnly
	JsonPatchError
	PatchConflict
	StorageCorruption
	Timeout
	ShuttingDown
	IOError
	TestFailed
)

func (c Code) String() string {
	switch c {
	case RevisionNotFound:
		return "RevisionNotFound"
	case EntryNotFound:
		return "EntryNotFound"
	case RepositoryExists:
		return "RepositoryExists"
	case RepositoryNotFound:
		return "RepositoryNotFound"
	case ProjectExists:
		return "ProjectExists"
	case ProjectNotFound:
		return "ProjectNotFound"
	case ChangeConflict:
		return "ChangeConflict"
	case RedundantChange:
		return "RedundantChange"
	case ReadOnly:
		return "ReadOnly"
	case JsonPatchError:
		return "JsonPatchError"
	case PatchConflict:
		return "PatchConflict"
	case StorageCorruption:
		return "StorageCorruption"
	case Timeout:
		return "Timeout"
	case ShuttingDown:
		return "ShuttingDown"
	case IOError:
		return "IOError"
	case TestFailed:
		return "TestFailed"
	default:
		return "Unknown"
	}
}

// Error is the concrete error value returned by every storage-core
// operation that fails. It wraps an optional cause so callers can still
// use errors.Is/errors.As against lower-level failures.
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

// New builds an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error wrapping a lower-level cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a *Error carrying the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
