// Package errors defines the typed error taxonomy shared across the
// agentic core: components whose callers classify failures (retry vs.
// not, fatal vs. recoverable) wrap their errors in an AppError. Not every
// package does; the config loaders and the MCP client, for example,
// return fmt.Errorf values.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies which of the core's error kinds an AppError carries.
type Code string

const (
	CodeProvider     Code = "PROVIDER"
	CodeTool         Code = "TOOL"
	CodePermission   Code = "PERMISSION"
	CodeTask         Code = "TASK"
	CodeTimeout      Code = "TIMEOUT"
	CodeConfig       Code = "CONFIG"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
)

// AppError is the core's error envelope: a classification code, a
// human message, and an optional wrapped cause.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

func NewProvider(message string, cause error) *AppError {
	return Wrap(CodeProvider, message, cause)
}

func NewTool(message string, cause error) *AppError {
	return Wrap(CodeTool, message, cause)
}

func NewPermission(message string) *AppError {
	return New(CodePermission, message)
}

func NewTask(message string, cause error) *AppError {
	return Wrap(CodeTask, message, cause)
}

func NewTimeout(message string) *AppError {
	return New(CodeTimeout, message)
}

func NewConfig(message string, cause error) *AppError {
	return Wrap(CodeConfig, message, cause)
}

func NewInvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func NewNotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

// Is reports whether err is an AppError of the given code.
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
