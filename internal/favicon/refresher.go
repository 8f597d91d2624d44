package favicon

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nikbrunner/bmsync/internal/logging"
)

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	Cache     *Cache
	Workers   int // default 4
	QueueSize int // default 256
	Logger    *zerolog.Logger
}

// Refresher runs favicon refreshes in the background on a fixed set of
// workers. Schedule never blocks; Close waits for the queued work.
type Refresher struct {
	cache  *Cache
	log    zerolog.Logger
	jobs   chan string
	group  *errgroup.Group
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]bool
	closed  bool
}

// NewRefresher starts the workers.
func NewRefresher(cfg RefresherConfig) *Refresher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	r := &Refresher{
		cache:   cfg.Cache,
		log:     logging.OrNop(cfg.Logger).With().Str("component", "favicon").Logger(),
		jobs:    make(chan string, queueSize),
		group:   g,
		cancel:  cancel,
		pending: make(map[string]bool),
	}

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for origin := range r.jobs {
				if ctx.Err() == nil {
					r.cache.Refresh(ctx, origin)
				}
				r.done(origin)
			}
			return nil
		})
	}
	return r
}

// Schedule queues a refresh for origin. An origin already queued or in
// flight is not queued twice. When the queue is full or the refresher is
// closed the request is dropped.
func (r *Refresher) Schedule(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.pending[origin] {
		return
	}
	select {
	case r.jobs <- origin:
		r.pending[origin] = true
	default:
		r.log.Warn().Str("origin", origin).Msg("favicon queue full, refresh dropped")
	}
}

func (r *Refresher) done(origin string) {
	r.mu.Lock()
	delete(r.pending, origin)
	r.mu.Unlock()
}

// Clear drops every cached favicon. Refreshes already queued still run.
func (r *Refresher) Clear(ctx context.Context) error {
	return r.cache.Clear(ctx)
}

// Pending returns the number of queued or running refreshes.
func (r *Refresher) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close stops accepting work and waits for the queue to drain. When ctx ends
// first, running fetches are cancelled, the remaining queue is discarded and
// ctx's error is returned.
func (r *Refresher) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
