package errors

import (
	"errors"
	"net/http"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

func Validation(message string) error {
	return &ErrorWithStatusCode{Message: message, StatusCode: http.StatusBadRequest}
}

func Unauthorized(message string) error {
	return &ErrorWithStatusCode{Message: message, StatusCode: http.StatusUnauthorized}
}

func Forbidden(message string) error {
	return &ErrorWithStatusCode{Message: message, StatusCode: http.StatusForbidden}
}

func NotFound(message string) error {
	return &ErrorWithStatusCode{Message: message, StatusCode: http.StatusNotFound}
}

// Conflict is returned for constraint violations (e.g. duplicate username).
func Conflict(message string) error {
	return &ErrorWithStatusCode{Message: message, StatusCode: http.StatusConflict}
}

// StatusCode returns the status carried by err or 0 if err is untyped.
func StatusCode(err error) int {
	var e *ErrorWithStatusCode
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func IsValidation(err error) bool   { return StatusCode(err) == http.StatusBadRequest }
func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }
func IsForbidden(err error) bool    { return StatusCode(err) == http.StatusForbidden }
func IsNotFound(err error) bool     { return StatusCode(err) == http.StatusNotFound }
func IsConflict(err error) bool     { return StatusCode(err) == http.StatusConflict }
