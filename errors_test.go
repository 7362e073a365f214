package iris

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  FetchErrorType
		retryable bool
	}{
		{"navigation timeout", errors.New("Navigation timeout of 30000 ms exceeded"), ErrTimeout, true},
		{"timeout in message", errors.New("page timeout after 30s"), ErrTimeout, true},
		{"context deadline", context.DeadlineExceeded, ErrTimeout, true},
		{"dns failure", errors.New("DNS resolution failed"), ErrDNS, true},
		{"getaddrinfo", errors.New("getaddrinfo failed"), ErrDNS, true},
		{"name resolution", errors.New("Name resolution failed"), ErrDNS, true},
		{"go dns error", errors.New("dial tcp: lookup nosuch.invalid: no such host"), ErrDNS, true},
		{"ssl certificate", errors.New("SSL certificate verify failed"), ErrSSL, false},
		{"tls handshake", errors.New("tls: handshake failure"), ErrSSL, false},
		{"connection reset", errors.New("Connection reset by peer"), ErrConnection, true},
		{"connection refused", errors.New("Connection refused"), ErrConnection, true},
		{"broken pipe", errors.New("write: broken pipe"), ErrConnection, true},
		{"chrome dns", errors.New("page load error net::ERR_NAME_NOT_RESOLVED"), ErrDNS, true},
		{"chrome connection refused", errors.New("page load error net::ERR_CONNECTION_REFUSED"), ErrConnection, true},
		{"chrome connection reset", errors.New("page load error net::ERR_CONNECTION_RESET"), ErrConnection, true},
		{"chrome offline", errors.New("page load error net::ERR_INTERNET_DISCONNECTED"), ErrConnection, true},
		{"chrome unreachable", errors.New("page load error net::ERR_ADDRESS_UNREACHABLE"), ErrConnection, true},
		{"chrome bad cert", errors.New("page load error net::ERR_CERT_AUTHORITY_INVALID"), ErrSSL, false},
		{"chrome ssl protocol", errors.New("page load error net::ERR_SSL_PROTOCOL_ERROR"), ErrSSL, false},
		{"chrome timed out", errors.New("page load error net::ERR_TIMED_OUT"), ErrTimeout, true},
		{"chrome connection timed out", errors.New("page load error net::ERR_CONNECTION_TIMED_OUT"), ErrTimeout, true},
		{"chrome aborted", errors.New("page load error net::ERR_ABORTED"), ErrBrowser, false},
		{"unknown error", errors.New("something unknown happened"), ErrBrowser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("Classify(%q).Type = %s, want %s", tt.err, got.Type, tt.wantType)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Classify(%q).Retryable = %v, want %v", tt.err, got.Retryable, tt.retryable)
			}
		})
	}
}

func TestClassifyPrecedence(t *testing.T) {
	// "timeout" outranks every later rule, even when a later needle also
	// appears in the message.
	got := Classify(errors.New("connection timeout during tls handshake"))
	if got.Type != ErrTimeout {
		t.Errorf("Type = %s, want %s", got.Type, ErrTimeout)
	}
}

func TestClassifyPreservesMessage(t *testing.T) {
	got := Classify(errors.New("test message"))
	if got.Message != "test message" {
		t.Errorf("Message = %q, want original message preserved", got.Message)
	}
}

func TestClassifyHTTP(t *testing.T) {
	tests := []struct {
		status    int
		wantType  FetchErrorType
		retryable bool
	}{
		{429, ErrRateLimited, true},
		{502, ErrHTTP, true},
		{503, ErrHTTP, true},
		{504, ErrHTTP, true},
		{400, ErrHTTP, false},
		{401, ErrHTTP, false},
		{403, ErrHTTP, false},
		{404, ErrHTTP, false},
		{500, ErrHTTP, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			got := ClassifyHTTP(tt.status)
			if got.Type != tt.wantType {
				t.Errorf("ClassifyHTTP(%d).Type = %s, want %s", tt.status, got.Type, tt.wantType)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("ClassifyHTTP(%d).Retryable = %v, want %v", tt.status, got.Retryable, tt.retryable)
			}
			if got.HTTPStatus != tt.status {
				t.Errorf("ClassifyHTTP(%d).HTTPStatus = %d", tt.status, got.HTTPStatus)
			}
		})
	}
}

func TestNewFetchErrorRetryable(t *testing.T) {
	nonRetryable := []FetchErrorType{
		ErrSSL, ErrBlockedByRobots, ErrUnsupportedContentType,
		ErrInvalidURL, ErrContentTooLarge, ErrBrowser,
	}
	for _, typ := range nonRetryable {
		if NewFetchError(typ, "x").Retryable {
			t.Errorf("%s should not be retryable", typ)
		}
	}

	for _, typ := range []FetchErrorType{ErrTimeout, ErrDNS, ErrConnection, ErrRateLimited} {
		if !NewFetchError(typ, "x").Retryable {
			t.Errorf("%s should be retryable", typ)
		}
	}
}
