package socket

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode classifies every error the socket core reports
type ErrorCode uint8

const (
	CodeNone ErrorCode = iota
	ResolutionFailed
	ConnectionRefused
	ConnectTimeout
	AlreadyConnected
	NotConnected
	ReadInProgress
	WriteInProgress
	PayloadTooLarge
	Cancelled
	UnknownIdentifier
	StreamError
)

var codeNames = [...]string{
	CodeNone:          "None",
	ResolutionFailed:  "ResolutionFailed",
	ConnectionRefused: "ConnectionRefused",
	ConnectTimeout:    "ConnectTimeout",
	AlreadyConnected:  "AlreadyConnected",
	NotConnected:      "NotConnected",
	ReadInProgress:    "ReadInProgress",
	WriteInProgress:   "WriteInProgress",
	PayloadTooLarge:   "PayloadTooLarge",
	Cancelled:         "Cancelled",
	UnknownIdentifier: "UnknownIdentifier",
	StreamError:       "StreamError",
}

// String returns the string representation of an ErrorCode
func (c ErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", uint8(c))
}

// MarshalJSON serializes an ErrorCode as its string form
func (c ErrorCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON parses the string form of an ErrorCode
func (c *ErrorCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	code, ok := ParseErrorCode(s)
	if !ok {
		return fmt.Errorf("unknown error code %q", s)
	}
	*c = code
	return nil
}

// ParseErrorCode returns the ErrorCode with the given name
func ParseErrorCode(s string) (ErrorCode, bool) {
	for i, name := range codeNames {
		if name == s {
			return ErrorCode(i), true
		}
	}
	return CodeNone, false
}

// Contract reports whether the code is a contract violation. Contract violations are
// returned synchronously and never change the socket state.
func (c ErrorCode) Contract() bool {
	switch c {
	case AlreadyConnected, NotConnected, ReadInProgress, WriteInProgress, PayloadTooLarge, UnknownIdentifier:
		return true
	default:
		return false
	}
}

// Error is the error type of the socket core
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, detail)
	}
	return e.Code.String()
}

// Detail returns message and cause without the code
func (e *Error) Detail() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrNotConnected)
// holds for every NotConnected error regardless of its message
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates an error with the given code
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

var (
	ErrAlreadyConnected  = &Error{Code: AlreadyConnected, Message: "socket is not idle"}
	ErrNotConnected      = &Error{Code: NotConnected, Message: "socket is not open"}
	ErrListening         = &Error{Code: NotConnected, Message: "socket is a listener"}
	ErrNotListening      = &Error{Code: NotConnected, Message: "socket is not a listener"}
	ErrReadInProgress    = &Error{Code: ReadInProgress, Message: "a read is already outstanding"}
	ErrWriteInProgress   = &Error{Code: WriteInProgress, Message: "a write is already outstanding"}
	ErrPayloadTooLarge   = &Error{Code: PayloadTooLarge, Message: "payload exceeds buffer capacity"}
	ErrCancelled         = &Error{Code: Cancelled, Message: "socket is closing"}
	ErrUnknownIdentifier = &Error{Code: UnknownIdentifier, Message: "no socket with this identifier"}
)

// CodeOf returns the code of err. Errors that are not an *Error map to StreamError,
// nil maps to CodeNone.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return StreamError
}

// AsError returns err as *Error, wrapping foreign errors as StreamError
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: StreamError, Err: err}
}
