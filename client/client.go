// Package client runs the fetch pipeline: cache lookup, politeness checks,
// the retried browser fetch, content extraction, and cache store.
package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	iris "github.com/irislabs/iris"
	"github.com/irislabs/iris/browser"
	"github.com/irislabs/iris/cache"
	"github.com/irislabs/iris/config"
	"github.com/irislabs/iris/extract"
	"github.com/irislabs/iris/fetcher"
	"github.com/irislabs/iris/logger"
	"github.com/irislabs/iris/pdf"
	"github.com/irislabs/iris/ratelimit"
	"github.com/irislabs/iris/retry"
	"github.com/irislabs/iris/robots"
)

// Client executes fetch requests end to end.
type Client struct {
	cfg       *config.Settings
	log       logger.Logger
	exec      Executor
	limiter   *ratelimit.Limiter
	robots    *robots.Oracle
	cache     *cache.Cache
	extractor *extract.Extractor
	pdf       *pdf.Extractor
	retrier   *retry.Retrier
}

// Option configures the Client.
type Option func(*Client)

// WithPool wires the production browser pool executor.
func WithPool(pool *browser.Pool) Option {
	return func(c *Client) {
		c.exec = &browserExecutor{pool: pool, fetcher: fetcher.New(c.cfg, c.log)}
	}
}

// WithExecutor overrides the fetch executor, mainly for tests.
func WithExecutor(e Executor) Option {
	return func(c *Client) { c.exec = e }
}

// WithRateLimiter sets the per-origin rate limiter.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRobots sets the robots.txt oracle.
func WithRobots(o *robots.Oracle) Option {
	return func(c *Client) { c.robots = o }
}

// WithCache sets the response cache.
func WithCache(ca *cache.Cache) Option {
	return func(c *Client) { c.cache = ca }
}

// New creates a client. Dependencies left unset degrade to no-ops: no cache,
// no rate limiting, robots allowed.
func New(cfg *config.Settings, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.Noop()
	}
	c := &Client{
		cfg:       cfg,
		log:       log,
		extractor: extract.New(cfg.MaxContentLength, log),
		pdf:       pdf.New(),
		retrier:   retry.New(cfg.MaxRetries, log),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(nil, cfg.MinDelayBetweenRequestsMS, 3, log)
	}
	if c.robots == nil {
		c.robots = robots.New(cfg.UserAgent, nil, cfg.RespectRobotsTxt, log)
	}
	if c.cache == nil {
		c.cache = cache.New(nil, cfg.CacheTTL(), log)
	}
	return c
}

// Cache exposes the response cache for invalidation and stats.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// Fetch runs one fetch request through the full pipeline. Failures are
// reported inside the response, never as a Go error.
func (c *Client) Fetch(ctx context.Context, req iris.FetchRequest) *iris.FetchResponse {
	start := time.Now()

	if ferr := iris.ValidateURL(req.URL); ferr != nil {
		return c.errorResponse(req.URL, 0, ferr, start)
	}

	key := cache.MakeKey(req.URL, map[string]any{
		"extract_text":     req.ExtractText,
		"extract_links":    req.ExtractLinks,
		"extract_metadata": req.ExtractMetadata,
		"screenshot":       req.Screenshot,
		"wait_strategy":    string(req.WaitStrategy),
	})

	if req.Cache {
		if hit := c.cache.Get(ctx, key); hit != nil {
			c.log.Debug("cache hit", "url", req.URL, "key", key)
			return hit
		}
	}

	origin := iris.Origin(req.URL)
	if err := c.limiter.Acquire(ctx, origin); err != nil {
		return c.errorResponse(req.URL, 0, iris.Classify(err), start)
	}

	if !c.robots.CanFetch(ctx, req.URL) {
		c.log.Info("blocked by robots.txt", "url", req.URL)
		ferr := iris.NewFetchError(iris.ErrBlockedByRobots, "robots.txt disallows fetching this URL")
		return c.errorResponse(req.URL, 0, ferr, start)
	}

	session, err := c.exec.Acquire(ctx)
	if err != nil {
		return c.errorResponse(req.URL, 0, iris.NewFetchError(iris.ErrBrowser, err.Error()), start)
	}
	defer session.Release()

	params := c.resolveParams(req)

	var result *fetcher.Result
	ferr := c.retrier.Do(ctx, func(ctx context.Context, attempt int) *iris.FetchError {
		c.log.Debug("fetch attempt", "url", req.URL, "attempt", attempt)
		result = session.Fetch(ctx, params)
		return result.Err
	})
	if ferr != nil {
		status := 0
		if result != nil {
			status = result.StatusCode
		}
		return c.errorResponse(req.URL, status, ferr, start)
	}

	resp := c.assemble(ctx, req, result)
	resp.FetchTimeMS = time.Since(start).Milliseconds()

	if req.Cache && resp.Error == nil {
		c.cache.Set(ctx, key, resp)
	}

	c.log.Info("fetch completed",
		"url", req.URL,
		"status_code", resp.StatusCode,
		"content_length", resp.ContentLength,
		"fetch_time_ms", resp.FetchTimeMS,
	)
	return resp
}

// FetchBatch fans requests out concurrently and returns results in request
// order. A panicking fetch becomes a browser_error result for its slot.
func (c *Client) FetchBatch(ctx context.Context, reqs []iris.FetchRequest) *iris.BatchFetchResponse {
	start := time.Now()
	results := make([]iris.FetchResponse, len(reqs))

	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = iris.FetchResponse{
						URL:   req.URL,
						Error: iris.NewFetchError(iris.ErrBrowser, fmt.Sprint(r)),
					}
				}
			}()
			results[i] = *c.Fetch(ctx, req)
			return nil
		})
	}
	g.Wait()

	return &iris.BatchFetchResponse{
		Results:     results,
		TotalTimeMS: time.Since(start).Milliseconds(),
	}
}

// resolveParams fills request gaps from config: zero timeout or settle delay
// means the configured default.
func (c *Client) resolveParams(req iris.FetchRequest) fetcher.Params {
	timeoutMS := req.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = c.cfg.PageTimeoutMS
	}
	settleMS := req.WaitAfterLoadMS
	if settleMS <= 0 {
		settleMS = c.cfg.WaitAfterLoadMS
	}
	return fetcher.Params{
		URL:          req.URL,
		WaitStrategy: req.WaitStrategy,
		Selector:     req.WaitForSelector,
		Timeout:      time.Duration(timeoutMS) * time.Millisecond,
		SettleDelay:  time.Duration(settleMS) * time.Millisecond,
		Screenshot:   req.Screenshot,
		Headers:      req.Headers,
	}
}

// assemble turns a raw fetch result into the wire response according to the
// document content type and the request's extraction flags.
func (c *Client) assemble(ctx context.Context, req iris.FetchRequest, result *fetcher.Result) *iris.FetchResponse {
	resp := &iris.FetchResponse{
		URL:        result.URL,
		StatusCode: result.StatusCode,
	}

	switch {
	case result.RawBytes != nil:
		c.assemblePDF(ctx, req, result, resp)

	case result.ContentType == "application/json" || result.ContentType == "text/plain":
		if req.ExtractText {
			resp.ContentText = result.Body
		}
		resp.ContentLength = len(result.Body)

	case strings.HasPrefix(result.ContentType, "image/"):
		if req.ExtractMetadata {
			resp.Metadata = &iris.PageMetadata{}
		}

	default:
		c.assembleHTML(req, result, resp)
	}

	return resp
}

func (c *Client) assemblePDF(ctx context.Context, req iris.FetchRequest, result *fetcher.Result, resp *iris.FetchResponse) {
	doc, err := c.pdf.Extract(ctx, result.RawBytes)
	if err != nil {
		// Text extraction failing on a fetched PDF degrades to an empty
		// body rather than failing the whole fetch.
		c.log.Warn("pdf extraction failed", "url", req.URL, "error", err)
		doc = &pdf.Result{}
	}

	if req.ExtractText {
		resp.ContentText = doc.Text
	}
	if req.ExtractMetadata {
		resp.Metadata = &iris.PageMetadata{
			Title:         doc.Title,
			Author:        doc.Author,
			PublishedDate: doc.CreatedDate,
			PDFPages:      doc.Pages,
			PDFAuthor:     doc.Author,
		}
	}
	resp.ContentLength = len(doc.Text)
}

func (c *Client) assembleHTML(req iris.FetchRequest, result *fetcher.Result, resp *iris.FetchResponse) {
	if req.ExtractText {
		resp.ContentText = c.extractor.Text(result.Body, result.URL)
		resp.ContentLength = len(resp.ContentText)
	} else {
		resp.ContentHTML = result.Body
	}
	if req.ExtractMetadata {
		resp.Metadata = c.extractor.Metadata(result.Body, result.URL)
	}
	if req.ExtractLinks {
		resp.Links = c.extractor.Links(result.Body, result.URL)
	}
	resp.StructuredData = c.extractor.StructuredData(result.Body)

	if len(result.Screenshot) > 0 {
		resp.ScreenshotBase64 = base64.StdEncoding.EncodeToString(result.Screenshot)
	}
}

func (c *Client) errorResponse(url string, status int, ferr *iris.FetchError, start time.Time) *iris.FetchResponse {
	c.log.Warn("fetch failed",
		"url", url,
		"error_type", string(ferr.Type),
		"error", ferr.Message,
		"retryable", ferr.Retryable,
	)
	return &iris.FetchResponse{
		URL:         url,
		StatusCode:  status,
		Error:       ferr,
		FetchTimeMS: time.Since(start).Milliseconds(),
	}
}
