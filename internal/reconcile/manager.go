// Package reconcile owns the live extended bookmark tree. It brings the
// stored tree in line with the bookmark service at startup, keeps it in
// sync from the service's notifications afterwards and is the only path
// through which icons and colors change.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikbrunner/bmsync/internal/bookmarks"
	"github.com/nikbrunner/bmsync/internal/logging"
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/native"
	"github.com/nikbrunner/bmsync/internal/storage"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// ErrNotStarted is returned by operations that need a started Manager.
var ErrNotStarted = errors.New("reconcile: manager not started")

// Favicons is the favicon side of the manager: refreshes are scheduled
// while nodes are built, the cache is cleared when the stored tree is
// bootstrapped and outstanding refreshes are awaited on Close.
type Favicons interface {
	tree.IconScheduler
	Clear(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config configures a Manager.
type Config struct {
	Service  bookmarks.Service
	Store    storage.Store
	Favicons Favicons       // optional
	Native   native.Channel // optional, defaults to native.Disabled
	// PersistDelay holds background writes back so bursts of changes are
	// written once. Zero writes as soon as possible.
	PersistDelay time.Duration
	Logger       *zerolog.Logger
}

// UpdateResult is the outcome of RequestUpdate.
type UpdateResult struct {
	Node *tree.Node
	// Styled reports whether the native companion accepted the new folder
	// style. It is false for bookmarks and for changes that do not affect
	// rendering.
	Styled bool
}

// Manager is the single owner of the live tree. Mutations are applied one at
// a time under its lock; readers get copies.
type Manager struct {
	service  bookmarks.Service
	store    storage.Store
	favicons Favicons
	icons    tree.IconScheduler
	native   native.Channel
	log      zerolog.Logger

	mu      sync.RWMutex
	root    *tree.Node
	persist *persister

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// New creates a manager. Nothing is loaded until Start.
func New(cfg Config) *Manager {
	m := &Manager{
		service:  cfg.Service,
		store:    cfg.Store,
		favicons: cfg.Favicons,
		native:   cfg.Native,
		log:      logging.OrNop(cfg.Logger).With().Str("component", "reconcile").Logger(),
		subs:     make(map[int]func(Event)),
	}
	if cfg.Favicons != nil {
		m.icons = cfg.Favicons
	}
	if m.native == nil {
		m.native = native.Disabled{}
	}
	m.persist = newPersister(cfg.Store, m.snapshot, cfg.PersistDelay, m.log)
	return m
}

// Start loads the stored tree, or bootstraps one from the bookmark service
// when none is stored, and reconciles it against the service's tree. It then
// checks that the native companion answers.
func (m *Manager) Start(ctx context.Context) (Report, error) {
	authoritative, err := m.service.GetTree(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: get tree: %w", err)
	}
	stored, err := m.load(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	m.mu.Lock()
	if stored == nil || stored.ID != authoritative.ID {
		m.root = m.bootstrap(ctx, authoritative)
		report.Added = m.root.Len()
	} else {
		m.root = tree.Restore(stored, m.icons)
		report = Merge(m.root, authoritative, m.icons)
	}
	m.mu.Unlock()
	m.persist.request()

	m.log.Info().
		Int("added", report.Added).
		Int("updated", report.Updated).
		Int("removed", report.Removed).
		Msg("tree reconciled")

	if _, off := m.native.(native.Disabled); off {
		m.log.Debug().Msg("native styling disabled")
	} else if m.native.Ping(ctx) {
		m.log.Info().Msg("native companion connected")
	} else {
		m.log.Warn().Msg("native companion not found, folder styles stay local")
	}
	return report, nil
}

// load returns the stored tree, or nil when none is stored or it cannot be
// decoded.
func (m *Manager) load(ctx context.Context) (*tree.Node, error) {
	data, ok, err := m.store.Get(ctx, storage.NamespaceTree, storage.KeyBookmarks)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load tree: %w", err)
	}
	if !ok {
		m.log.Info().Msg("no stored tree, bootstrapping")
		return nil, nil
	}
	root, err := tree.Decode(data)
	if err != nil {
		m.log.Warn().Err(err).Msg("stored tree unreadable, bootstrapping")
		return nil, nil
	}
	return root, nil
}

// bootstrap builds a fresh tree from the authoritative one. The favicon
// cache is cleared first so the rebuilt tree starts from an empty cache.
func (m *Manager) bootstrap(ctx context.Context, authoritative *model.Node) *tree.Node {
	if m.favicons != nil {
		if err := m.favicons.Clear(ctx); err != nil {
			m.log.Warn().Err(err).Msg("favicon cache not cleared")
		}
	}
	root := tree.New(authoritative, m.icons)
	root.SortByIndex()
	return root
}

// Reconcile runs a full reconciliation against the bookmark service.
func (m *Manager) Reconcile(ctx context.Context) (Report, error) {
	if !m.started() {
		return Report{}, ErrNotStarted
	}
	authoritative, err := m.service.GetTree(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: get tree: %w", err)
	}

	m.mu.Lock()
	var report Report
	if m.root.ID != authoritative.ID {
		m.log.Warn().Str("stored", m.root.ID).Str("authoritative", authoritative.ID).Msg("root changed, rebuilding")
		m.root = m.bootstrap(ctx, authoritative)
		report.Added = m.root.Len()
	} else {
		report = Merge(m.root, authoritative, m.icons)
	}
	m.mu.Unlock()

	if report.Changed() {
		m.persist.request()
	}
	m.log.Info().
		Int("added", report.Added).
		Int("updated", report.Updated).
		Int("removed", report.Removed).
		Msg("tree reconciled")
	return report, nil
}

// Run applies the bookmark service's notifications, in order, until ctx
// ends or the service closes its channel.
func (m *Manager) Run(ctx context.Context) error {
	if !m.started() {
		return ErrNotStarted
	}
	notes := m.service.Notifications()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case note, ok := <-notes:
			if !ok {
				return nil
			}
			m.Apply(note)
		}
	}
}

// Subscribe registers fn for every event and returns a function that
// removes it. fn runs on the goroutine that applied the change and must not
// call back into mutating methods.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) emit(e Event) {
	if e == nil {
		return
	}
	m.subMu.Lock()
	subs := make([]func(Event), 0, len(m.subs))
	for id := 0; id < m.nextSub; id++ {
		if fn, ok := m.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Flush writes pending changes to the store now.
func (m *Manager) Flush(ctx context.Context) error {
	return m.persist.flush(ctx)
}

// Close writes pending changes and waits for outstanding favicon
// refreshes, or until ctx ends.
func (m *Manager) Close(ctx context.Context) error {
	err := m.persist.close(ctx)
	if m.favicons != nil {
		err = errors.Join(err, m.favicons.Close(ctx))
	}
	return err
}

func (m *Manager) started() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root != nil
}

func (m *Manager) snapshot() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.root == nil {
		return nil, ErrNotStarted
	}
	return tree.Encode(m.root)
}
