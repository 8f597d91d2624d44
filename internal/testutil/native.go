package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/nikbrunner/bmsync/internal/native"
)

// Native records folder styles sent to the companion. Every call reports
// Accept.
type Native struct {
	Accept bool

	mu     sync.Mutex
	pings  int
	styles []native.FolderStyle
}

func (n *Native) Ping(context.Context) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pings++
	return n.Accept
}

func (n *Native) UpdateFolder(_ context.Context, style native.FolderStyle) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.styles = append(n.styles, style)
	return n.Accept
}

// Pings returns how often Ping was called.
func (n *Native) Pings() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pings
}

// Styles returns the styles sent so far.
func (n *Native) Styles() []native.FolderStyle {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.styles)
}
