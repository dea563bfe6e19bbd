package myerrors

import (
	"fmt"
	"net/http"
	"time"
)

type httpErrorCoder interface {
	error
	GetHTTPErrorCode() int
}

type httpError struct {
	httpCode int
	err      error
}

func (e httpError) Error() string {
	return fmt.Sprintf("status: %d, err: %s", e.httpCode, e.err.Error())
}

func (e httpError) GetHTTPErrorCode() int {
	return e.httpCode
}

func (e httpError) Unwrap() error {
	return e.err
}

func newError(httpCode int, err error) *httpError {
	return &httpError{
		httpCode: httpCode,
		err:      err,
	}
}

func NewInvalidInputError(err error) *httpError {
	return newError(http.StatusBadRequest, err)
}

func NewInvalidInputErrorf(format string, args ...interface{}) *httpError {
	return NewInvalidInputError(fmt.Errorf(format, args...))
}

func NewNotFoundError(err error) *httpError {
	return newError(http.StatusNotFound, err)
}

func NewAuthenticationError(err error) *httpError {
	return newError(http.StatusForbidden, err)
}

func NewInternalError(err error) *httpError {
	return newError(http.StatusInternalServerError, err)
}

func NewNotImplementedError(err error) *httpError {
	return newError(http.StatusNotImplemented, err)
}

func NewUnavailableError(err error) *httpError {
	return newError(http.StatusServiceUnavailable, err)
}

// RateLimitedError is returned when local admission control rejects a request.
// RetryAfter tells the caller when the block lifts.
type RateLimitedError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("status: %d, err: rate limit exceeded for %s, retry after %s",
		http.StatusTooManyRequests, e.Endpoint, e.RetryAfter)
}

func (e *RateLimitedError) GetHTTPErrorCode() int {
	return http.StatusTooManyRequests
}

func NewRateLimitedError(endpoint string, retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{
		Endpoint:   endpoint,
		RetryAfter: retryAfter,
	}
}

func GetHttpStatus(err error) int {
	if err != nil {
		myError, ok := err.(httpErrorCoder)
		if ok {
			return myError.GetHTTPErrorCode()
		}
	}
	return http.StatusInternalServerError
}
