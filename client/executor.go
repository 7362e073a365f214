package client

import (
	"context"

	"github.com/irislabs/iris/browser"
	"github.com/irislabs/iris/fetcher"
)

// Executor hands out fetch sessions. A session owns one browser pool slot
// for its whole lifetime, so retries never give up their place.
type Executor interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session runs fetch attempts against a held pool slot.
type Session interface {
	Fetch(ctx context.Context, p fetcher.Params) *fetcher.Result
	Release()
}

// browserExecutor is the production Executor over the chromedp pool.
type browserExecutor struct {
	pool    *browser.Pool
	fetcher *fetcher.Fetcher
}

func (e *browserExecutor) Acquire(ctx context.Context) (Session, error) {
	lease, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &browserSession{lease: lease, fetcher: e.fetcher}, nil
}

type browserSession struct {
	lease   *browser.Lease
	fetcher *fetcher.Fetcher
}

func (s *browserSession) Fetch(ctx context.Context, p fetcher.Params) *fetcher.Result {
	return s.fetcher.Fetch(ctx, s.lease, p)
}

func (s *browserSession) Release() {
	s.lease.Release()
}
