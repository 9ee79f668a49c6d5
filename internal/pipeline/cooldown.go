package pipeline

import (
	"context"
	"sync"
	"time"
)

// CooldownGate is the shared rate-limit window. When the upstream
// classifier throttles one worker, every worker waits out the same
// window before its next classify call, instead of piling retries onto
// an already-throttled service. Single writer (whichever worker saw the
// 429 first), many readers.
type CooldownGate struct {
	window time.Duration

	mu    sync.Mutex
	until time.Time
}

// NewCooldownGate creates a gate with the given window. A zero window
// disables the gate.
func NewCooldownGate(window time.Duration) *CooldownGate {
	return &CooldownGate{window: window}
}

// Trigger opens a cooldown window starting now. Overlapping triggers
// extend to the latest deadline, never shorten it.
func (g *CooldownGate) Trigger() {
	if g.window <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if t := time.Now().Add(g.window); t.After(g.until) {
		g.until = t
	}
}

// Wait blocks until no cooldown window is active or ctx is cancelled.
// Re-checks the deadline after sleeping in case another worker extended
// the window meanwhile.
func (g *CooldownGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		d := time.Until(g.until)
		g.mu.Unlock()
		if d <= 0 {
			return nil
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Active reports whether a cooldown window is currently open.
func (g *CooldownGate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().Before(g.until)
}
