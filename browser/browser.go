// Package browser owns the shared headless browser and vends short-lived
// pages under a global concurrency cap.
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/irislabs/iris/config"
	"github.com/irislabs/iris/logger"
)

// Pool manages one headless browser and caps the number of live pages.
type Pool struct {
	cfg    *config.Settings
	log    logger.Logger
	sem    chan struct{}
	cdpURL string

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	connected     bool
}

// Lease is a held pool slot. A lease can open pages one after another, which
// lets a retrying fetch keep its slot while replacing a dead tab.
type Lease struct {
	pool *Pool
	once sync.Once
}

// Page is a single browser tab opened under a lease. Closing it destroys the
// tab but keeps the lease.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New creates a pool sized by MAX_CONCURRENT_PAGES. The browser is not
// launched until Start.
func New(cfg *config.Settings, log logger.Logger) *Pool {
	if log == nil {
		log = logger.Noop()
	}
	return &Pool{
		cfg:    cfg,
		log:    log,
		sem:    make(chan struct{}, cfg.MaxConcurrentPages),
		cdpURL: os.Getenv("CDP_URL"),
	}
}

// Start launches the headless browser (or attaches to a remote DevTools
// endpoint when CDP_URL is set). On failure the pool stays disconnected and
// every Acquire fails fast.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}

	var allocCtx context.Context
	if p.cdpURL != "" {
		p.log.Debug("using remote CDP endpoint", "url", p.cdpURL)
		allocCtx, p.allocCancel = chromedp.NewRemoteAllocator(ctx, p.cdpURL, chromedp.NoModifyURL)
	} else {
		opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
		copy(opts, chromedp.DefaultExecAllocatorOptions[:])
		opts = append(opts,
			chromedp.Flag("headless", p.cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-background-networking", true),
			chromedp.Flag("mute-audio", true),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.UserAgent(p.cfg.UserAgent),
		)
		allocCtx, p.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	p.browserCtx, p.browserCancel = chromedp.NewContext(allocCtx)

	// Run with no actions forces the browser process to launch now so a
	// broken environment is caught at startup rather than on first fetch.
	if err := chromedp.Run(p.browserCtx); err != nil {
		p.browserCancel()
		p.allocCancel()
		p.browserCtx = nil
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	p.connected = true
	p.log.Info("browser started", "type", p.cfg.BrowserType, "headless", p.cfg.Headless)
	return nil
}

// Connected reports whether the browser is running.
func (p *Pool) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// ActivePages returns the number of slots currently leased.
func (p *Pool) ActivePages() int {
	return len(p.sem)
}

// Acquire takes a pool slot, blocking until one is free or ctx is done. It
// fails fast when the browser is not connected.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if !p.Connected() {
		return nil, fmt.Errorf("browser not connected")
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &Lease{pool: p}, nil
}

// Release returns the slot to the pool. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		<-l.pool.sem
	})
}

// NewPage opens a fresh tab in the shared browser.
func (l *Lease) NewPage() (*Page, error) {
	l.pool.mu.Lock()
	browserCtx := l.pool.browserCtx
	connected := l.pool.connected
	l.pool.mu.Unlock()

	if !connected {
		return nil, fmt.Errorf("browser not connected")
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	return &Page{ctx: tabCtx, cancel: tabCancel}, nil
}

// Close shuts the browser down. Outstanding pages become unusable.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browserCancel != nil {
		p.browserCancel()
		p.browserCancel = nil
	}
	if p.allocCancel != nil {
		p.allocCancel()
		p.allocCancel = nil
	}
	p.browserCtx = nil
	if p.connected {
		p.connected = false
		p.log.Info("browser closed")
	}
}

// Context returns the chromedp context for driving this page.
func (pg *Page) Context() context.Context {
	return pg.ctx
}

// Close destroys the tab. Safe to call more than once.
func (pg *Page) Close() {
	pg.once.Do(pg.cancel)
}
