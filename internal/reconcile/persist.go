package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikbrunner/bmsync/internal/storage"
)

// persister writes the live tree to the store in the background. Requests
// that arrive while a write is pending are folded into it, so a burst of
// notifications costs one write of the final state.
type persister struct {
	store    storage.Store
	snapshot func() ([]byte, error)
	delay    time.Duration
	log      zerolog.Logger

	writeMu sync.Mutex
	dirty   atomic.Bool
	kick    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newPersister(store storage.Store, snapshot func() ([]byte, error), delay time.Duration, log zerolog.Logger) *persister {
	p := &persister{
		store:    store,
		snapshot: snapshot,
		delay:    delay,
		log:      log,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

// request marks the tree dirty and wakes the writer. It never blocks.
func (p *persister) request() {
	p.dirty.Store(true)
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *persister) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case <-p.kick:
		}
		if p.delay > 0 {
			select {
			case <-p.stop:
				return
			case <-time.After(p.delay):
			}
		}
		if err := p.flush(context.Background()); err != nil {
			p.log.Error().Err(err).Msg("persist failed")
		}
	}
}

// flush writes the tree now if it changed since the last write.
func (p *persister) flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if !p.dirty.Swap(false) {
		return nil
	}
	data, err := p.snapshot()
	if err != nil {
		return err
	}
	if err := p.store.Set(ctx, storage.NamespaceTree, storage.KeyBookmarks, data); err != nil {
		return fmt.Errorf("reconcile: persist: %w", err)
	}
	p.log.Debug().Int("bytes", len(data)).Msg("tree persisted")
	return nil
}

// close stops the background writer and writes what is still pending.
func (p *persister) close(ctx context.Context) error {
	p.once.Do(func() { close(p.stop) })
	<-p.done
	return p.flush(ctx)
}
