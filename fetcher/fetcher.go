// Package fetcher executes a single fetch attempt: drive the page to the
// URL, capture the document response, and dispatch on its content type.
package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	iris "github.com/irislabs/iris"
	"github.com/irislabs/iris/browser"
	"github.com/irislabs/iris/config"
	"github.com/irislabs/iris/logger"
	"github.com/irislabs/iris/wait"
)

// Result is the raw outcome of one fetch attempt, before extraction.
type Result struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        string // rendered HTML, pretty JSON, or plain text
	RawBytes    []byte // raw body for PDFs
	Screenshot  []byte // full page PNG
	Err         *iris.FetchError
}

// Params configures one fetch attempt. Timeouts and waits are already
// resolved against config defaults by the caller.
type Params struct {
	URL          string
	WaitStrategy iris.WaitStrategy
	Selector     string
	Timeout      time.Duration
	SettleDelay  time.Duration
	Screenshot   bool
	Headers      map[string]string
}

// docResponse holds the document response captured off the CDP event
// stream. The listener runs on chromedp's event goroutine, so access is
// guarded.
type docResponse struct {
	mu          sync.Mutex
	status      int
	contentType string
}

func (d *docResponse) set(status int, contentType string) {
	d.mu.Lock()
	d.status = status
	d.contentType = contentType
	d.mu.Unlock()
}

func (d *docResponse) snapshot() (int, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, d.contentType
}

// Fetcher runs fetch attempts against leased browser pages.
type Fetcher struct {
	cfg   *config.Settings
	waits *wait.Engine
	raw   *rawFetcher
	log   logger.Logger
}

// New creates a fetcher.
func New(cfg *config.Settings, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Noop()
	}
	return &Fetcher{
		cfg:   cfg,
		waits: wait.NewEngine(log),
		raw:   newRawFetcher(cfg),
		log:   log,
	}
}

// Fetch runs one attempt on a fresh page from the lease. The page is always
// destroyed before returning. Failures come back as Result.Err, never as a
// Go error, so the retry layer can apply the taxonomy.
func (f *Fetcher) Fetch(ctx context.Context, lease *browser.Lease, p Params) *Result {
	result := &Result{URL: p.URL}

	pg, err := lease.NewPage()
	if err != nil {
		result.Err = iris.NewFetchError(iris.ErrBrowser, err.Error())
		return result
	}
	defer pg.Close()

	tabCtx, cancel := attemptContext(ctx, pg.Context(), p.Timeout)
	defer cancel()

	tracker := wait.NewTracker()
	var doc docResponse

	chromedp.ListenTarget(tabCtx, func(ev any) {
		tracker.Observe(ev)
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			doc.set(int(e.Response.Status), e.Response.MimeType)
		}
	})

	actions := []chromedp.Action{
		network.Enable(),
		cdppage.Enable(),
		cdppage.SetLifecycleEventsEnabled(true),
	}
	if len(p.Headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(toNetworkHeaders(p.Headers)))
	}
	actions = append(actions, chromedp.Navigate(p.URL))

	navErr := chromedp.Run(tabCtx, actions...)

	status, contentType := doc.snapshot()
	result.StatusCode = status
	result.ContentType = canonicalContentType(contentType)

	if navErr != nil {
		// Chrome aborts navigation for bodies it downloads instead of
		// rendering. If we saw the document response, the attempt can
		// still finish over a direct request.
		if status == 0 || isHTMLType(result.ContentType) {
			result.Err = iris.Classify(navErr)
			return result
		}
		f.log.Debug("navigation aborted, dispatching on captured response",
			"url", p.URL, "content_type", result.ContentType)
	}

	if status >= 400 {
		result.Err = iris.ClassifyHTTP(status)
		return result
	}

	f.dispatch(tabCtx, tracker, p, result)
	return result
}

// dispatch fills the result body according to the document content type.
func (f *Fetcher) dispatch(tabCtx context.Context, tracker *wait.Tracker, p Params, result *Result) {
	ct := result.ContentType

	switch {
	case isPDF(ct, p.URL):
		result.RawBytes, result.Err = f.raw.fetch(tabCtx, p.URL, p.Headers)

	case ct == "application/json":
		raw, err := f.raw.fetch(tabCtx, p.URL, p.Headers)
		if err != nil {
			result.Err = err
			return
		}
		result.Body = prettyJSON(raw)

	case ct == "text/plain":
		raw, err := f.raw.fetch(tabCtx, p.URL, p.Headers)
		if err != nil {
			result.Err = err
			return
		}
		result.Body = string(raw)

	case strings.HasPrefix(ct, "image/"):
		// Nothing to extract; the fetch itself succeeded.

	case isHTMLType(ct):
		f.renderHTML(tabCtx, tracker, p, result)

	default:
		result.Err = iris.NewFetchError(iris.ErrUnsupportedContentType,
			"unsupported content type: "+ct)
	}
}

// renderHTML applies the wait strategy, then captures the rendered document
// and the optional screenshot.
func (f *Fetcher) renderHTML(tabCtx context.Context, tracker *wait.Tracker, p Params, result *Result) {
	strategy := wait.Resolve(p.WaitStrategy, p.Selector)
	waitErr := f.waits.Wait(tabCtx, tracker, strategy, wait.Params{
		Selector:    p.Selector,
		Timeout:     p.Timeout,
		WaitFor:     p.SettleDelay,
		SettleDelay: p.SettleDelay,
	})
	if waitErr != nil {
		result.Err = iris.Classify(waitErr)
		return
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html)); err != nil {
		result.Err = iris.Classify(err)
		return
	}
	result.Body = html

	if result.StatusCode == 0 && html != "" {
		result.StatusCode = 200
	}

	if p.Screenshot {
		var shot []byte
		err := chromedp.Run(tabCtx,
			emulation.SetDeviceMetricsOverride(1280, 800, 1, false),
			chromedp.FullScreenshot(&shot, 90),
		)
		if err != nil {
			// A failed screenshot does not fail the fetch.
			f.log.Warn("screenshot failed", "url", p.URL, "error", err)
		} else {
			result.Screenshot = shot
		}
	}
}

// attemptContext derives the attempt context from the page context, bounded
// by the attempt timeout. The page context does not descend from the
// caller's, so the caller's cancellation is bridged across: an abandoned
// request tears the attempt down instead of running to the page timeout.
func attemptContext(callerCtx, pageCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tabCtx, cancel := context.WithTimeout(pageCtx, timeout)
	stop := context.AfterFunc(callerCtx, cancel)
	return tabCtx, func() {
		stop()
		cancel()
	}
}

// canonicalContentType lowercases a MIME type and strips parameters,
// defaulting to text/html when the server sent nothing.
func canonicalContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return "text/html"
	}
	return ct
}

// isPDF recognizes PDF documents, including servers that mislabel them as
// octet-stream when the path says otherwise.
func isPDF(ct, rawURL string) bool {
	if ct == "application/pdf" {
		return true
	}
	if ct != "application/octet-stream" {
		return false
	}
	path := rawURL
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

func isHTMLType(ct string) bool {
	return ct == "text/html" || ct == "application/xhtml+xml"
}

func toNetworkHeaders(h map[string]string) network.Headers {
	headers := make(network.Headers, len(h))
	for k, v := range h {
		headers[k] = v
	}
	return headers
}
