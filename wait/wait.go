// Package wait decides when a dynamically rendered page is ready for
// extraction. Strategy waits are tolerant: hitting the time limit logs a
// warning and proceeds with whatever rendered, it is not a fetch failure.
package wait

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	iris "github.com/irislabs/iris"
	"github.com/irislabs/iris/logger"
)

const (
	pollInterval = 50 * time.Millisecond
	idleQuietFor = 500 * time.Millisecond
)

// Params configures a single wait.
type Params struct {
	// Selector is the CSS selector for the selector strategy.
	Selector string

	// Timeout bounds the strategy wait.
	Timeout time.Duration

	// WaitFor is the fixed sleep for the timeout strategy.
	WaitFor time.Duration

	// SettleDelay is slept after the strategy wait to let late scripts
	// run. Not applied to the timeout strategy, whose sleep is explicit.
	SettleDelay time.Duration
}

// Engine runs wait strategies against a page.
type Engine struct {
	log logger.Logger
}

// NewEngine creates a wait engine.
func NewEngine(log logger.Logger) *Engine {
	if log == nil {
		log = logger.Noop()
	}
	return &Engine{log: log}
}

// Resolve applies the strategy upgrade rule: a plain load wait with a
// selector present becomes a selector wait.
func Resolve(strategy iris.WaitStrategy, selector string) iris.WaitStrategy {
	if strategy == iris.WaitLoad && selector != "" {
		return iris.WaitSelector
	}
	return strategy
}

// Wait applies the strategy to a page, then the settle delay. ctx must be
// the page's chromedp context; tracker must be receiving the page's events.
func (e *Engine) Wait(ctx context.Context, tracker *Tracker, strategy iris.WaitStrategy, p Params) error {
	switch strategy {
	case iris.WaitLoad:
		// Navigation already waited for the load event.

	case iris.WaitDOMContentLoaded:
		e.poll(ctx, p.Timeout, strategy, tracker.DOMContentLoaded)

	case iris.WaitNetworkIdle:
		e.poll(ctx, p.Timeout, strategy, func() bool {
			return tracker.NetworkIdle(idleQuietFor)
		})

	case iris.WaitSelector:
		if p.Selector == "" {
			e.log.Warn("selector strategy used without a selector")
			break
		}
		waitCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(p.Selector, chromedp.ByQuery))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("selector wait timed out", "selector", p.Selector)
		}

	case iris.WaitTimeout:
		if p.WaitFor > 0 {
			if err := sleepCtx(ctx, p.WaitFor); err != nil {
				return err
			}
		}
		// The explicit sleep replaces the settle delay.
		return ctx.Err()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if p.SettleDelay > 0 {
		return sleepCtx(ctx, p.SettleDelay)
	}
	return nil
}

// poll waits for cond to become true, giving up quietly at the timeout.
func (e *Engine) poll(ctx context.Context, timeout time.Duration, strategy iris.WaitStrategy, cond func() bool) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			e.log.Warn("wait timed out", "strategy", string(strategy))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
