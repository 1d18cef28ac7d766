package tracking

import (
	"context"
	"io"
	"sync"
	"time"
)

var (
	_ Reporter  = (*Cooldown)(nil)
	_ io.Closer = (*Cooldown)(nil)
)

// Cooldown wraps a Reporter and delivers at most one update per interval
// for each index. Completed progress is always delivered at once; the
// latest held-back update is delivered when the interval elapses.
type Cooldown struct {
	inner    Reporter
	interval time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

// window tracks one index: when it last delivered and what it holds back.
type window struct {
	sent  time.Time
	held  *Progress
	timer *time.Timer
}

func (w *window) stop() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// NewCooldown creates a Cooldown around inner.
func NewCooldown(inner Reporter, interval time.Duration) *Cooldown {
	return &Cooldown{
		inner:    inner,
		interval: interval,
		windows:  make(map[string]*window),
	}
}

// OnProgress implements Reporter.
func (c *Cooldown) OnProgress(ctx context.Context, p Progress) error {
	if c.admit(ctx, p) {
		return c.inner.OnProgress(ctx, p)
	}
	return nil
}

// admit reports whether p should be delivered now. Otherwise p is held and
// a delivery is scheduled for the end of the window.
func (c *Cooldown) admit(ctx context.Context, p Progress) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[p.Index]
	if p.Done() {
		if w != nil {
			w.stop()
			delete(c.windows, p.Index)
		}
		return true
	}
	if w == nil {
		w = &window{}
		c.windows[p.Index] = w
	}

	wait := c.interval - time.Since(w.sent)
	if wait <= 0 {
		w.stop()
		w.held = nil
		w.sent = time.Now()
		return true
	}

	held := p
	w.held = &held
	if w.timer == nil {
		w.timer = time.AfterFunc(wait, func() { c.release(ctx, p.Index) })
	}
	return false
}

// release delivers the update held for index, if any.
func (c *Cooldown) release(ctx context.Context, index string) {
	c.mu.Lock()
	w := c.windows[index]
	if w == nil {
		c.mu.Unlock()
		return
	}
	w.timer = nil
	held := w.held
	if held != nil {
		w.held = nil
		w.sent = time.Now()
	}
	c.mu.Unlock()

	if held != nil {
		_ = c.inner.OnProgress(ctx, *held)
	}
}

// Close delivers held updates and stops all timers.
func (c *Cooldown) Close() error {
	c.mu.Lock()
	windows := c.windows
	c.windows = make(map[string]*window)
	c.mu.Unlock()

	for _, w := range windows {
		w.stop()
		if w.held != nil {
			_ = c.inner.OnProgress(context.Background(), *w.held)
		}
	}
	return nil
}
