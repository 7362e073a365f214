package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	iris "github.com/irislabs/iris"
	"github.com/irislabs/iris/config"
)

// rawFetcher downloads document bodies the browser will not render (PDFs,
// JSON, plain text) over a direct HTTP request.
type rawFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func newRawFetcher(cfg *config.Settings) *rawFetcher {
	return &rawFetcher{
		client:    &http.Client{Timeout: cfg.PageTimeout()},
		userAgent: cfg.UserAgent,
		maxBytes:  int64(cfg.MaxContentLength),
	}
}

// fetch downloads the body with a hard size cap. Bodies over the cap are a
// non-retryable content_too_large error; transport failures go through the
// usual taxonomy.
func (rf *rawFetcher) fetch(ctx context.Context, url string, headers map[string]string) ([]byte, *iris.FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, iris.NewFetchError(iris.ErrInvalidURL, err.Error())
	}
	req.Header.Set("User-Agent", rf.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := rf.client.Do(req)
	if err != nil {
		return nil, iris.Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, iris.ClassifyHTTP(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, rf.maxBytes+1))
	if err != nil {
		return nil, iris.Classify(err)
	}
	if int64(len(body)) > rf.maxBytes {
		return nil, iris.NewFetchError(iris.ErrContentTooLarge,
			fmt.Sprintf("body exceeds %d bytes", rf.maxBytes))
	}

	return body, nil
}

// prettyJSON reindents a JSON document with two spaces, leaving non-ASCII
// characters intact. Invalid JSON is passed through untouched.
func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
