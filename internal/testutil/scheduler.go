package testutil

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// Scheduler records favicon refresh requests.
type Scheduler struct {
	mu      sync.Mutex
	origins []string
}

// Schedule records origin.
func (s *Scheduler) Schedule(origin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origins = append(s.origins, origin)
}

// Origins returns the recorded origins in call order.
func (s *Scheduler) Origins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.origins)
}

// Scheduled reports whether origin was requested at least once.
func (s *Scheduler) Scheduled(origin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.origins, origin)
}

// Favicons is a Scheduler that also records cache clears and closes.
type Favicons struct {
	Scheduler
	clears atomic.Int32
	closed atomic.Bool
}

// Clear records a cache clear.
func (f *Favicons) Clear(context.Context) error {
	f.clears.Add(1)
	return nil
}

// Close records that outstanding refreshes were awaited.
func (f *Favicons) Close(context.Context) error {
	f.closed.Store(true)
	return nil
}

// Clears returns how often Clear was called.
func (f *Favicons) Clears() int {
	return int(f.clears.Load())
}

// Closed reports whether Close was called.
func (f *Favicons) Closed() bool {
	return f.closed.Load()
}
