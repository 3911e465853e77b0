package libchat

import (
	"errors"
	"fmt"
)

// Error represents a libchat library error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for messaging operations.
const (
	// ErrCodeNoData indicates no data was found.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeValidation indicates validation failed.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeDatabase indicates a database operation failed.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeDelivery indicates a push to a live connection failed.
	ErrCodeDelivery = "DELIVERY_ERROR"

	// ErrCodeProtocol indicates a malformed or invalid inbound frame.
	// Protocol errors are reported to the originating connection as an
	// error frame; the connection stays open.
	ErrCodeProtocol = "PROTOCOL_ERROR"

	// ErrCodeAuthorization indicates the caller is not allowed to perform
	// the operation (anonymous connect, reading a foreign private message,
	// non-admin topic administration).
	ErrCodeAuthorization = "AUTHORIZATION_ERROR"

	// ErrCodeNotFound indicates a referenced entity (topic, message, user)
	// does not exist. No state change is performed.
	ErrCodeNotFound = "NOT_FOUND"
)

// Common errors.
var (
	// ErrNoData is returned when a query returns no results.
	// This is not necessarily an error condition in all cases.
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}

	// ErrConnClosed is returned by a connection handle whose underlying
	// transport is gone. A send that fails this way is treated as
	// "recipient not live", never as a fatal condition.
	ErrConnClosed = &Error{
		Code:    ErrCodeDelivery,
		Message: "connection closed",
	}

	// ErrSendQueueFull is returned when a connection's bounded outbound
	// queue is full. The recipient is treated as not live.
	ErrSendQueueFull = &Error{
		Code:    ErrCodeDelivery,
		Message: "outbound queue full",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	var libchatErr *Error
	if errors.As(err, &libchatErr) {
		return libchatErr.Code == ErrCodeNoData
	}
	return errors.Is(err, ErrNoData)
}

// IsProtocolError checks if an error is a protocol error. Protocol errors are
// answered with an error frame without closing the connection.
func IsProtocolError(err error) bool {
	var libchatErr *Error
	if errors.As(err, &libchatErr) {
		return libchatErr.Code == ErrCodeProtocol
	}
	return false
}

// ErrorCode extracts the machine-readable code from an error, or empty string
// if the error is not a libchat error.
func ErrorCode(err error) string {
	var libchatErr *Error
	if errors.As(err, &libchatErr) {
		return libchatErr.Code
	}
	return ""
}
