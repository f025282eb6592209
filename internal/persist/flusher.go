package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultFlushInterval is how often the Flusher re-checks dirty documents.
const DefaultFlushInterval = 5 * time.Second

// Flusher periodically requests a non-forced save of every document, which
// picks up changes whose save request was dropped while another was in flight.
type Flusher struct {
	persister *Persister
	interval  time.Duration
	clock     clockwork.Clock
}

// NewFlusher creates a Flusher ticking every interval on clock.
func NewFlusher(p *Persister, interval time.Duration, clock clockwork.Clock) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{
		persister: p,
		interval:  interval,
		clock:     clock,
	}
}

// Run ticks until ctx is done, then waits for in-flight saves. It always
// returns nil so it can run inside an errgroup.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	slog.DebugContext(ctx, "flusher started", "interval", f.interval)

	for {
		select {
		case <-ctx.Done():
			f.persister.Wait()
			return nil
		case <-ticker.Chan():
			f.tick(ctx)
		}
	}
}

func (f *Flusher) tick(ctx context.Context) {
	for _, kind := range f.persister.kinds {
		// Result channels are buffered; nobody needs to drain them.
		_ = f.persister.RequestSave(ctx, kind, false)
	}
}

