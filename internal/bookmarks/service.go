// Package bookmarks provides the authoritative bookmark service: the source
// of truth for the tree structure and the notifications that report changes
// to it.
package bookmarks

import (
	"context"
	"errors"
	"sync"

	"github.com/nikbrunner/bmsync/internal/model"
)

var (
	ErrNotFound      = errors.New("bookmarks: node not found")
	ErrUnmodifiable  = errors.New("bookmarks: node is unmodifiable")
	ErrInvalidParent = errors.New("bookmarks: parent is not a folder")
	ErrReadOnly      = errors.New("bookmarks: service is read-only")
)

// Service is the authoritative bookmark tree.
type Service interface {
	// GetTree returns a deep copy of the whole tree.
	GetTree(ctx context.Context) (*model.Node, error)
	Create(ctx context.Context, details model.CreateDetails) (*model.Node, error)
	Update(ctx context.Context, id string, info model.ChangeInfo) (*model.Node, error)
	// Notifications delivers changes in the order they happened. The
	// channel is closed when the service shuts down.
	Notifications() <-chan model.Notification
}

// notifier queues notifications without blocking the producer and hands
// them out, in order, on a channel.
type notifier struct {
	out    chan model.Notification
	signal chan struct{}
	stop   chan struct{}

	mu     sync.Mutex
	queue  []model.Notification
	closed bool
}

func newNotifier() *notifier {
	n := &notifier{
		out:    make(chan model.Notification),
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go n.pump()
	return n
}

func (n *notifier) emit(notes ...model.Notification) {
	if len(notes) == 0 {
		return
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, notes...)
	n.mu.Unlock()

	select {
	case n.signal <- struct{}{}:
	default:
	}
}

// close stops delivery; notifications not yet received are dropped.
func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	close(n.stop)
}

func (n *notifier) pump() {
	defer close(n.out)
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.mu.Unlock()
			select {
			case <-n.signal:
				continue
			case <-n.stop:
				return
			}
		}
		next := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		n.mu.Unlock()

		select {
		case n.out <- next:
		case <-n.stop:
			return
		}
	}
}
