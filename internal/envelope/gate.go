package envelope

import (
	"context"
	"sync"
)

// Gate serializes one logical action: starting a new call cancels the
// previous in-flight call before the new request goes out, so responses can
// never be applied out of order.
type Gate struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

// Start cancels any in-flight call and returns a context for the new one.
// The returned release func must be called when the call finishes; it cancels
// the context so no attempt timer is left running.
func (g *Gate) Start(ctx context.Context) (context.Context, func()) {
	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	g.seq++
	seq := g.seq
	g.cancel = cancel
	g.mu.Unlock()

	release := func() {
		g.mu.Lock()
		if g.seq == seq {
			g.cancel = nil
		}
		g.mu.Unlock()
		cancel()
	}
	return callCtx, release
}
