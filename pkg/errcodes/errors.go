package errcodes

import (
	"fmt"

	"github.com/pkg/errors"
)

// Scope describes how far a failure is allowed to propagate.
type Scope string

const (
	// ScopeRun aborts the whole invocation.
	ScopeRun Scope = "run"
	// ScopeItem aborts the processing of a single library item.
	ScopeItem Scope = "item"
	// ScopeRetry is retried internally and escalates to item scope once the
	// retry budget is spent.
	ScopeRetry Scope = "retry"
)

const (
	CodeAuthentication   = "authentication_error"
	CodePagination       = "pagination_error"
	CodeTransientNetwork = "transient_network_error"
	CodeFatalRequest     = "fatal_request_error"
	CodePartNotFound     = "part_not_found"
	CodeMalformedContent = "malformed_content"
	CodeMissingCover     = "missing_cover"
	CodeEncoding         = "encoding_error"
	CodeFilesystem       = "filesystem_error"
)

type Error struct {
	Code    string
	Message string
	Scope   Scope
	Err     error
}

func (err *Error) Error() string {
	if err.Err == nil {
		return err.Message
	}
	return fmt.Sprintf("%s: %s", err.Message, err.Err.Error())
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Is matches on the error code so that constructors can be used as targets,
// e.g. errors.Is(err, errcodes.PartNotFound("")).
func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == err.Code
}

// AuthenticationError is returned when the login endpoint rejects the
// credentials or returns no session cookies.
func AuthenticationError(err error, msg string) error {
	return &Error{
		Code:    CodeAuthentication,
		Message: msg,
		Scope:   ScopeRun,
		Err:     err,
	}
}

// PaginationError is returned when any page of the library listing fails.
func PaginationError(err error, cursor string) error {
	return &Error{
		Code:    CodePagination,
		Message: fmt.Sprintf("failed to list library page %q", cursor),
		Scope:   ScopeRun,
		Err:     err,
	}
}

// TransientNetworkError wraps the last failure of a request whose retry
// budget has been exhausted.
func TransientNetworkError(err error, url string) error {
	return &Error{
		Code:    CodeTransientNetwork,
		Message: fmt.Sprintf("request to %s kept failing", url),
		Scope:   ScopeRetry,
		Err:     err,
	}
}

// StatusError records an unsuccessful HTTP status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// FatalRequestError is returned for responses that retrying can't fix.
func FatalRequestError(status int, url string) error {
	return &Error{
		Code:    CodeFatalRequest,
		Message: fmt.Sprintf("request to %s failed", url),
		Scope:   ScopeItem,
		Err:     &StatusError{StatusCode: status},
	}
}

func PartNotFound(partID string) error {
	return &Error{
		Code:    CodePartNotFound,
		Message: fmt.Sprintf("part %q not found in container", partID),
		Scope:   ScopeItem,
	}
}

func MalformedContent(err error, what string) error {
	return &Error{
		Code:    CodeMalformedContent,
		Message: fmt.Sprintf("malformed content: %s", what),
		Scope:   ScopeItem,
		Err:     err,
	}
}

func MissingCover(err error, url string) error {
	return &Error{
		Code:    CodeMissingCover,
		Message: fmt.Sprintf("cover %q unavailable", url),
		Scope:   ScopeItem,
		Err:     err,
	}
}

func EncodingError(err error, msg string) error {
	return &Error{
		Code:    CodeEncoding,
		Message: msg,
		Scope:   ScopeItem,
		Err:     err,
	}
}

func FilesystemError(err error, path string) error {
	return &Error{
		Code:    CodeFilesystem,
		Message: fmt.Sprintf("failed to write %s", path),
		Scope:   ScopeItem,
		Err:     err,
	}
}

// ScopeOf returns the scope of the outermost *Error in the chain. Errors that
// don't carry a scope are treated as item scoped.
func ScopeOf(err error) Scope {
	var e *Error
	if errors.As(err, &e) {
		return e.Scope
	}
	return ScopeItem
}

// IsRunFatal reports whether err must abort the whole run.
func IsRunFatal(err error) bool {
	return err != nil && ScopeOf(err) == ScopeRun
}

// IsItemFatal reports whether err only aborts the current item. Exhausted
// transient failures count as item fatal at the call site.
func IsItemFatal(err error) bool {
	if err == nil {
		return false
	}
	s := ScopeOf(err)
	return s == ScopeItem || s == ScopeRetry
}

// IsTransient reports whether err is a retriable network failure.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeTransientNetwork
}

// StatusCodeOf returns the HTTP status carried by err, or 0 when the failure
// didn't come with a response.
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// CodeOf returns the code of the outermost *Error, or "" when there is none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
