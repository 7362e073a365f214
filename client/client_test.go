package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iris "github.com/irislabs/iris"
	"github.com/irislabs/iris/cache"
	"github.com/irislabs/iris/config"
	"github.com/irislabs/iris/fetcher"
	"github.com/irislabs/iris/robots"
)

// fakeSession replays canned results, the last one repeatedly.
type fakeSession struct {
	results  []*fetcher.Result
	calls    int
	released bool
}

func (s *fakeSession) Fetch(ctx context.Context, p fetcher.Params) *fetcher.Result {
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	return s.results[idx]
}

func (s *fakeSession) Release() { s.released = true }

type fakeExecutor struct {
	session  *fakeSession
	acquires int
	err      error
}

func (e *fakeExecutor) Acquire(ctx context.Context) (Session, error) {
	e.acquires++
	if e.err != nil {
		return nil, e.err
	}
	return e.session, nil
}

func testConfig() *config.Settings {
	cfg := config.Defaults()
	cfg.RespectRobotsTxt = false
	cfg.MinDelayBetweenRequestsMS = 0
	cfg.MaxRetries = 2
	return cfg
}

func htmlResult(url, body string) *fetcher.Result {
	return &fetcher.Result{
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        body,
	}
}

func baseRequest(t *testing.T, url string) iris.FetchRequest {
	t.Helper()
	return iris.FetchRequest{
		URL:             url,
		WaitStrategy:    iris.WaitLoad,
		ExtractText:     true,
		ExtractMetadata: true,
		Cache:           true,
	}
}

func TestFetchHappyPath(t *testing.T) {
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		htmlResult("https://example.com/a", "<html><head><title>Hi</title></head><body><p>Hello world content</p></body></html>"),
	}}}
	c := New(testConfig(), nil, WithExecutor(exec))

	resp := c.Fetch(context.Background(), baseRequest(t, "https://example.com/a"))

	require.Nil(t, resp.Error)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.ContentText, "Hello world content")
	assert.Equal(t, len(resp.ContentText), resp.ContentLength)
	assert.Equal(t, "Hi", resp.Metadata.Title)
	assert.False(t, resp.Cached)
	assert.True(t, exec.session.released, "the pool slot must be released")
}

func TestFetchStaticPage(t *testing.T) {
	page := `<html><head><title>Static Page</title><meta name="description" content="A simple static page"></head><body><p>Hello from a static page.</p><a href="https://example.com/other">Other Page</a></body></html>`
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		htmlResult("https://example.com/page", page),
	}}}
	c := New(testConfig(), nil, WithExecutor(exec))

	req := baseRequest(t, "https://example.com/page")
	req.ExtractLinks = true
	resp := c.Fetch(context.Background(), req)

	require.Nil(t, resp.Error)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Static Page", resp.Metadata.Title)
	assert.Equal(t, "A simple static page", resp.Metadata.Description)
	assert.Contains(t, resp.ContentText, "Hello from a static page.")
	require.NotEmpty(t, resp.Links)
	assert.Equal(t, "https://example.com/other", resp.Links[0].URL)
	assert.False(t, resp.Links[0].IsExternal)
}

func TestFetchInvalidURL(t *testing.T) {
	exec := &fakeExecutor{session: &fakeSession{}}
	c := New(testConfig(), nil, WithExecutor(exec))

	resp := c.Fetch(context.Background(), baseRequest(t, "ftp://example.com/file"))

	require.NotNil(t, resp.Error)
	assert.Equal(t, iris.ErrInvalidURL, resp.Error.Type)
	assert.Equal(t, 0, resp.StatusCode)
	assert.Zero(t, exec.acquires, "invalid URLs never reach the browser")
}

func TestFetchCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		htmlResult("https://example.com/a", "<html><body><p>cached page body</p></body></html>"),
	}}}
	c := New(testConfig(), nil,
		WithExecutor(exec),
		WithCache(cache.New(cache.NewRedisStore(rc), time.Hour, nil)),
	)

	first := c.Fetch(context.Background(), baseRequest(t, "https://example.com/a"))
	require.Nil(t, first.Error)
	assert.False(t, first.Cached)

	second := c.Fetch(context.Background(), baseRequest(t, "https://example.com/a"))
	require.Nil(t, second.Error)
	assert.True(t, second.Cached, "second identical request is served from cache")
	assert.Equal(t, first.ContentText, second.ContentText)
	assert.Equal(t, 1, exec.acquires, "cache hits never reach the browser")
}

func TestFetchCacheRespectsShapeFlags(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		htmlResult("https://example.com/a", "<html><body><p>body</p></body></html>"),
	}}}
	c := New(testConfig(), nil,
		WithExecutor(exec),
		WithCache(cache.New(cache.NewRedisStore(rc), time.Hour, nil)),
	)

	req := baseRequest(t, "https://example.com/a")
	c.Fetch(context.Background(), req)

	other := req
	other.ExtractLinks = true
	c.Fetch(context.Background(), other)

	assert.Equal(t, 2, exec.acquires, "different extraction flags are different cache entries")
}

func TestFetchCacheBypass(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		htmlResult("https://example.com/a", "<html><body><p>body</p></body></html>"),
	}}}
	c := New(testConfig(), nil,
		WithExecutor(exec),
		WithCache(cache.New(cache.NewRedisStore(rc), time.Hour, nil)),
	)

	req := baseRequest(t, "https://example.com/a")
	req.Cache = false
	c.Fetch(context.Background(), req)
	c.Fetch(context.Background(), req)

	assert.Equal(t, 2, exec.acquires, "cache=false skips both lookup and store")
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		{URL: "https://example.com/a", Err: iris.NewFetchError(iris.ErrTimeout, "navigation timed out")},
		{URL: "https://example.com/a", Err: iris.NewFetchError(iris.ErrTimeout, "navigation timed out")},
		htmlResult("https://example.com/a", "<html><body><p>recovered</p></body></html>"),
	}}}
	c := New(testConfig(), nil, WithExecutor(exec))
	var slept []time.Duration
	c.retrier.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	resp := c.Fetch(context.Background(), baseRequest(t, "https://example.com/a"))

	require.Nil(t, resp.Error)
	assert.Equal(t, 3, exec.session.calls, "two retries after the timeouts")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
	assert.Equal(t, 1, exec.acquires, "the pool slot is held across attempts")
}

func TestFetchNonRetryableFailsOnce(t *testing.T) {
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		{URL: "https://example.com/a", Err: iris.NewFetchError(iris.ErrSSL, "certificate expired")},
	}}}
	c := New(testConfig(), nil, WithExecutor(exec))

	resp := c.Fetch(context.Background(), baseRequest(t, "https://example.com/a"))

	require.NotNil(t, resp.Error)
	assert.Equal(t, iris.ErrSSL, resp.Error.Type)
	assert.Equal(t, 1, exec.session.calls)
}

func TestFetchHTTPErrorCarriesStatus(t *testing.T) {
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		{URL: "https://example.com/a", StatusCode: 404, ContentType: "text/html", Err: iris.ClassifyHTTP(404)},
	}}}
	c := New(testConfig(), nil, WithExecutor(exec))

	resp := c.Fetch(context.Background(), baseRequest(t, "https://example.com/a"))

	require.NotNil(t, resp.Error)
	assert.Equal(t, iris.ErrHTTP, resp.Error.Type)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, 1, exec.session.calls, "404 is not retryable")
}

func TestFetchBlockedByRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /\n"))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig()
	exec := &fakeExecutor{session: &fakeSession{}}
	c := New(cfg, nil,
		WithExecutor(exec),
		WithRobots(robots.New(cfg.UserAgent, nil, true, nil)),
	)

	resp := c.Fetch(context.Background(), baseRequest(t, srv.URL+"/private"))

	require.NotNil(t, resp.Error)
	assert.Equal(t, iris.ErrBlockedByRobots, resp.Error.Type)
	assert.False(t, resp.Error.Retryable)
	assert.Equal(t, 0, resp.StatusCode)
	assert.Zero(t, exec.acquires, "blocked URLs never reach the browser")
}

func TestFetchBrowserUnavailable(t *testing.T) {
	exec := &fakeExecutor{err: assert.AnError}
	c := New(testConfig(), nil, WithExecutor(exec))

	resp := c.Fetch(context.Background(), baseRequest(t, "https://example.com/a"))

	require.NotNil(t, resp.Error)
	assert.Equal(t, iris.ErrBrowser, resp.Error.Type)
}

func TestAssembleJSON(t *testing.T) {
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		{URL: "https://example.com/api", StatusCode: 200, ContentType: "application/json", Body: "{\n  \"a\": 1\n}"},
	}}}
	c := New(testConfig(), nil, WithExecutor(exec))

	resp := c.Fetch(context.Background(), baseRequest(t, "https://example.com/api"))

	require.Nil(t, resp.Error)
	assert.Equal(t, "{\n  \"a\": 1\n}", resp.ContentText)
	assert.Equal(t, len(resp.ContentText), resp.ContentLength)
	assert.Nil(t, resp.Metadata, "JSON responses carry no page metadata")
}

func TestAssembleImage(t *testing.T) {
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		{URL: "https://example.com/pic.png", StatusCode: 200, ContentType: "image/png"},
	}}}
	c := New(testConfig(), nil, WithExecutor(exec))

	resp := c.Fetch(context.Background(), baseRequest(t, "https://example.com/pic.png"))

	require.Nil(t, resp.Error)
	assert.Empty(t, resp.ContentText)
	assert.Zero(t, resp.ContentLength)
	require.NotNil(t, resp.Metadata)
	assert.True(t, resp.Metadata.IsZero())
}

func TestAssembleHTMLWithoutTextKeepsHTML(t *testing.T) {
	body := "<html><body><p>raw body</p></body></html>"
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		htmlResult("https://example.com/a", body),
	}}}
	c := New(testConfig(), nil, WithExecutor(exec))

	req := baseRequest(t, "https://example.com/a")
	req.ExtractText = false
	resp := c.Fetch(context.Background(), req)

	require.Nil(t, resp.Error)
	assert.Empty(t, resp.ContentText)
	assert.Equal(t, body, resp.ContentHTML)
	assert.Zero(t, resp.ContentLength)
}

func TestScreenshotStrippedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	result := htmlResult("https://example.com/a", "<html><body><p>shot</p></body></html>")
	result.Screenshot = []byte{0x89, 0x50, 0x4e, 0x47}
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{result}}}
	c := New(testConfig(), nil,
		WithExecutor(exec),
		WithCache(cache.New(cache.NewRedisStore(rc), time.Hour, nil)),
	)

	req := baseRequest(t, "https://example.com/a")
	req.Screenshot = true

	first := c.Fetch(context.Background(), req)
	require.Nil(t, first.Error)
	assert.NotEmpty(t, first.ScreenshotBase64)

	second := c.Fetch(context.Background(), req)
	require.Nil(t, second.Error)
	assert.True(t, second.Cached)
	assert.Empty(t, second.ScreenshotBase64, "screenshots are never served from cache")
}

func TestFetchBatchPreservesOrder(t *testing.T) {
	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		htmlResult("", "<html><body><p>page</p></body></html>"),
	}}}
	c := New(testConfig(), nil, WithExecutor(exec))

	reqs := []iris.FetchRequest{
		baseRequest(t, "https://example.com/1"),
		baseRequest(t, "not a url"),
		baseRequest(t, "https://example.com/3"),
	}
	batch := c.FetchBatch(context.Background(), reqs)

	require.Len(t, batch.Results, 3)
	assert.Equal(t, "https://example.com/1", batch.Results[0].URL)
	assert.Equal(t, "not a url", batch.Results[1].URL)
	assert.Equal(t, "https://example.com/3", batch.Results[2].URL)

	assert.Nil(t, batch.Results[0].Error)
	require.NotNil(t, batch.Results[1].Error)
	assert.Equal(t, iris.ErrInvalidURL, batch.Results[1].Error.Type)
	assert.Nil(t, batch.Results[2].Error)
	assert.GreaterOrEqual(t, batch.TotalTimeMS, int64(0))
}

func TestErrorResponsesAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	exec := &fakeExecutor{session: &fakeSession{results: []*fetcher.Result{
		{URL: "https://example.com/a", StatusCode: 404, Err: iris.ClassifyHTTP(404)},
	}}}
	c := New(testConfig(), nil,
		WithExecutor(exec),
		WithCache(cache.New(cache.NewRedisStore(rc), time.Hour, nil)),
	)

	c.Fetch(context.Background(), baseRequest(t, "https://example.com/a"))
	c.Fetch(context.Background(), baseRequest(t, "https://example.com/a"))

	assert.Equal(t, 2, exec.acquires, "failed fetches must not populate the cache")
}
