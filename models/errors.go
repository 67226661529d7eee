package models

import (
	"errors"
	"fmt"
)

// Error codes carried by ScrapeError.
const (
	ErrCodeTimeout       = "NAV_TIMEOUT"
	ErrCodeNavigation    = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash  = "BROWSER_CRASH"
	ErrCodeSessionCreate = "SESSION_CREATE_FAILED"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeExtraction    = "EXTRACTION_PANIC"
	ErrCodeInternal      = "INTERNAL_ERROR"

	// Status server codes.
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimited  = "RATE_LIMITED"
)

// ErrorDetail is the structured error exposed by the status server.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// ErrorCode returns the code of the first ScrapeError in err's chain,
// or ErrCodeInternal when there is none.
func ErrorCode(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether a navigation failure is transient: timeouts,
// generic navigation failures and session crashes are retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch ErrorCode(err) {
	case ErrCodeTimeout, ErrCodeNavigation, ErrCodeBrowserCrash:
		return true
	}
	return false
}

// IsSessionCrash reports whether err means the browser session died and must
// be recreated before the next navigation.
func IsSessionCrash(err error) bool {
	return ErrorCode(err) == ErrCodeBrowserCrash
}

// IsSessionFatal reports whether err means no browser session can be created
// at all. This is the only condition that stops a batch.
func IsSessionFatal(err error) bool {
	return ErrorCode(err) == ErrCodeSessionCreate
}
