package wait

import (
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

// Tracker accumulates lifecycle and network signals for a single page. Feed
// it every event from chromedp.ListenTarget and poll it from a wait.
type Tracker struct {
	mu               sync.Mutex
	inflight         int
	lastNetActivity  time.Time
	networkIdle      bool
	domContentLoaded bool
	loaded           bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe updates the tracker from a CDP event.
func (t *Tracker) Observe(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		t.inflight++
		t.lastNetActivity = time.Now()
		t.networkIdle = false
		t.mu.Unlock()
	case *network.EventLoadingFinished, *network.EventLoadingFailed:
		t.mu.Lock()
		if t.inflight > 0 {
			t.inflight--
		}
		t.lastNetActivity = time.Now()
		t.mu.Unlock()
	case *page.EventLifecycleEvent:
		t.mu.Lock()
		switch e.Name {
		case "DOMContentLoaded":
			t.domContentLoaded = true
		case "load":
			t.loaded = true
		case "networkIdle":
			t.networkIdle = true
		}
		t.mu.Unlock()
	}
}

// DOMContentLoaded reports whether the DOMContentLoaded lifecycle event fired.
func (t *Tracker) DOMContentLoaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.domContentLoaded
}

// Loaded reports whether the load lifecycle event fired.
func (t *Tracker) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

// NetworkIdle reports whether the page looks quiet: either the browser said
// networkIdle, or nothing has been in flight for idleFor.
func (t *Tracker) NetworkIdle(idleFor time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.networkIdle {
		return true
	}
	return t.inflight == 0 && !t.lastNetActivity.IsZero() && time.Since(t.lastNetActivity) >= idleFor
}
