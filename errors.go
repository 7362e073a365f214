package iris

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FetchErrorType classifies fetch failures.
type FetchErrorType string

const (
	ErrTimeout                FetchErrorType = "timeout"
	ErrDNS                    FetchErrorType = "dns_error"
	ErrConnection             FetchErrorType = "connection_error"
	ErrSSL                    FetchErrorType = "ssl_error"
	ErrBlockedByRobots        FetchErrorType = "blocked_by_robots_txt"
	ErrRateLimited            FetchErrorType = "rate_limited"
	ErrUnsupportedContentType FetchErrorType = "unsupported_content_type"
	ErrInvalidURL             FetchErrorType = "invalid_url"
	ErrHTTP                   FetchErrorType = "http_error"
	ErrContentTooLarge        FetchErrorType = "content_too_large"
	ErrBrowser                FetchErrorType = "browser_error"
)

// FetchError is structured error information for a failed fetch. It travels
// as a value through the pipeline rather than as a Go error.
type FetchError struct {
	Type       FetchErrorType `json:"type"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// retryable maps each error type to its retry behavior. http_error and
// rate_limited additionally depend on the HTTP status, see ClassifyHTTP.
var retryable = map[FetchErrorType]bool{
	ErrTimeout:                true,
	ErrDNS:                    true,
	ErrConnection:             true,
	ErrSSL:                    false,
	ErrBlockedByRobots:        false,
	ErrRateLimited:            true,
	ErrUnsupportedContentType: false,
	ErrInvalidURL:             false,
	ErrHTTP:                   false,
	ErrContentTooLarge:        false,
	ErrBrowser:                false,
}

// NewFetchError builds a FetchError with the retryable flag derived from the
// error type.
func NewFetchError(typ FetchErrorType, message string) *FetchError {
	return &FetchError{Type: typ, Message: message, Retryable: retryable[typ]}
}

// classifyRule matches an error message substring (lowercased) to a type.
// Rules are evaluated in order; the first match wins.
type classifyRule struct {
	typ     FetchErrorType
	needles []string
}

// The needles cover both Go transport errors ("connection refused") and the
// net::ERR_* codes Chrome reports navigation failures with.
var classifyRules = []classifyRule{
	{ErrTimeout, []string{"timeout", "timed out", "timed_out", "deadline exceeded"}},
	{ErrDNS, []string{"dns", "name resolution", "getaddrinfo", "no such host", "err_name_not_resolved"}},
	{ErrSSL, []string{"ssl", "certificate", "tls", "err_cert_"}},
	{ErrConnection, []string{"connection reset", "connection refused", "broken pipe", "connection closed", "eof", "err_connection_", "err_internet_disconnected", "err_address_unreachable"}},
}

// Classify maps an arbitrary error from navigation or content reading onto
// the fetch error taxonomy. Classification is pure over the error's type and
// message; anything unrecognized is a browser_error.
func Classify(err error) *FetchError {
	msg := err.Error()

	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Type: ErrTimeout, Message: msg, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &FetchError{Type: ErrDNS, Message: msg, Retryable: true}
	}

	lower := strings.ToLower(msg)
	for _, rule := range classifyRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return &FetchError{Type: rule.typ, Message: msg, Retryable: retryable[rule.typ]}
			}
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &FetchError{Type: ErrConnection, Message: msg, Retryable: true}
	}

	return &FetchError{Type: ErrBrowser, Message: msg, Retryable: false}
}

// ClassifyHTTP maps an HTTP status >= 400 onto the taxonomy. 429 is
// rate_limited and retryable; 502/503/504 are retryable http_errors; every
// other status is a non-retryable http_error.
func ClassifyHTTP(status int) *FetchError {
	if status == 429 {
		return &FetchError{
			Type:       ErrRateLimited,
			Message:    fmt.Sprintf("HTTP %d: rate limited by origin", status),
			Retryable:  true,
			HTTPStatus: status,
		}
	}

	canRetry := status == 502 || status == 503 || status == 504

	return &FetchError{
		Type:       ErrHTTP,
		Message:    fmt.Sprintf("HTTP error %d", status),
		Retryable:  canRetry,
		HTTPStatus: status,
	}
}
