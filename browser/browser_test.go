package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/irislabs/iris/config"
)

func testPool(maxPages int) *Pool {
	cfg := config.Defaults()
	cfg.MaxConcurrentPages = maxPages
	pool := New(cfg, nil)
	pool.connected = true
	pool.browserCtx = context.Background()
	return pool
}

func TestAcquireFailsWhenDisconnected(t *testing.T) {
	pool := New(config.Defaults(), nil)

	_, err := pool.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected error from disconnected pool")
	}
	if !strings.Contains(err.Error(), "not connected") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPoolCapsConcurrentLeases(t *testing.T) {
	pool := testPool(2)

	l1, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l1.Release()
	l2, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if got := pool.ActivePages(); got != 2 {
		t.Errorf("ActivePages = %d, want 2", got)
	}

	// A third lease must block until a slot frees up.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx); err == nil {
		t.Fatal("expected third Acquire to block and time out")
	}

	l2.Release()
	l3, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	l3.Release()
}

func TestLeaseOutlivesPages(t *testing.T) {
	pool := testPool(1)

	lease, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lease.Release()

	// One lease can open several pages in sequence without giving up its
	// slot.
	for i := 0; i < 3; i++ {
		pg, err := lease.NewPage()
		if err != nil {
			t.Fatalf("NewPage: %v", err)
		}
		pg.Close()
	}

	if got := pool.ActivePages(); got != 1 {
		t.Errorf("ActivePages = %d, want 1 while lease held", got)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	pool := testPool(1)

	lease, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	lease.Release()
	lease.Release()

	if got := pool.ActivePages(); got != 0 {
		t.Errorf("ActivePages after double release = %d, want 0", got)
	}
}

func TestPageCloseIsIdempotent(t *testing.T) {
	pool := testPool(1)

	lease, _ := pool.Acquire(context.Background())
	defer lease.Release()

	pg, err := lease.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	pg.Close()
	pg.Close()
}

func TestConnectedReflectsClose(t *testing.T) {
	pool := testPool(1)

	if !pool.Connected() {
		t.Fatal("pool should report connected")
	}
	pool.Close()
	if pool.Connected() {
		t.Fatal("pool should report disconnected after Close")
	}
	if _, err := pool.Acquire(context.Background()); err == nil {
		t.Fatal("Acquire should fail after Close")
	}
}
