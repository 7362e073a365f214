package iris

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that a fetch target is an absolute http or https URL.
// It returns a non-retryable invalid_url fetch error otherwise.
func ValidateURL(raw string) *FetchError {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return NewFetchError(ErrInvalidURL, fmt.Sprintf("unparseable URL: %v", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return NewFetchError(ErrInvalidURL, fmt.Sprintf("unsupported scheme %q", parsed.Scheme))
	}
	if parsed.Host == "" {
		return NewFetchError(ErrInvalidURL, "URL has no host")
	}
	return nil
}

// Origin returns the scheme://host[:port] part of a URL. Rate limiting and
// robots.txt are scoped per origin.
func Origin(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
