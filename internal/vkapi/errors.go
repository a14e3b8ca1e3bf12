package vkapi

import (
	"errors"
	"fmt"
	"time"
)

// VK API error codes the client differentiates on.
const (
	codeTooManyRequests     = 6  // short-term throttle, exponential backoff
	codeCommentsUnavailable = 18 // comments disabled or post removed
	codeRateLimit           = 29 // broader quota exhaustion, near-linear backoff
)

// APIError is an error object carried inside a VK API response envelope.
type APIError struct {
	Code   int    `json:"error_code"`
	Msg    string `json:"error_msg"`
	Method string `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api %s: code %d: %s", e.Method, e.Code, e.Msg)
}

// IsCommentsUnavailable reports whether err means the post's comments cannot
// be read (disabled by the group, or the post itself was removed). Callers
// treat this as "zero comments", not as a failure.
func IsCommentsUnavailable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeCommentsUnavailable
}

// action is the retry decision for one failed attempt.
type action int

const (
	actionFatal action = iota
	actionRetry
)

// classifyAPIError maps an API error to the retry action and backoff delay
// for the given attempt. Codes 6 and 29 are the only retryable API errors;
// every other code fails immediately regardless of remaining retry budget.
func classifyAPIError(code, attempt int, base, rateLimit time.Duration) (action, time.Duration) {
	switch code {
	case codeTooManyRequests:
		return actionRetry, backoffDelay(base, attempt)
	case codeRateLimit:
		return actionRetry, quotaDelay(rateLimit, attempt)
	default:
		return actionFatal, 0
	}
}

// backoffDelay is the exponential delay for throttle and transport retries:
// base, 2*base, 4*base, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<uint(attempt))
}

// quotaDelay is the near-linear delay for quota errors:
// rateLimit, rateLimit+5s, rateLimit+10s, ...
func quotaDelay(rateLimit time.Duration, attempt int) time.Duration {
	return rateLimit + time.Duration(attempt)*5*time.Second
}
