package service

import "errors"

type ErrorCode string

const (
	ErrorCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrorCodeConflict    ErrorCode = "CONFLICT"
	ErrorCodeBadRequest  ErrorCode = "BAD_REQUEST"
	ErrorCodeForbidden   ErrorCode = "FORBIDDEN"
	ErrorCodeUnspecified ErrorCode = "UNSPECIFIED"
	ErrorCodeInvalidBody ErrorCode = "INVALID_BODY"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// asError unwraps the service error returned from a transaction. Any other failure
// (begin, commit) is reported as unspecified.
func asError(err error) *Error {
	if err == nil {
		return nil
	}

	var res *Error
	if errors.As(err, &res) {
		return res
	}
	return NewError(ErrorCodeUnspecified, "transaction failed")
}
