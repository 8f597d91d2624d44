package reconcile

import (
	"context"
	"fmt"

	"github.com/nikbrunner/bmsync/internal/bookmarks"
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/native"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// Tree returns a copy of the live tree, or nil before Start.
func (m *Manager) Tree() *tree.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.root == nil {
		return nil
	}
	return m.root.Clone()
}

// Folders returns a copy of the live tree reduced to its folders.
func (m *Manager) Folders() *tree.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.root == nil {
		return nil
	}
	return m.root.Folders()
}

// Get returns a copy of the node with the given id, or nil.
func (m *Manager) Get(id string) *tree.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.root == nil {
		return nil
	}
	if n := m.root.Get(id); n != nil {
		return n.Clone()
	}
	return nil
}

// GetChildren returns copies of the children of the folder id.
func (m *Manager) GetChildren(id string) []*tree.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.root == nil {
		return nil
	}
	return cloneAll(m.root.GetChildren(id))
}

// GetParent returns a copy of the folder holding id, or nil.
func (m *Manager) GetParent(id string) *tree.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.root == nil {
		return nil
	}
	if n := m.root.GetParent(id); n != nil {
		return n.Clone()
	}
	return nil
}

// Search returns copies of every node whose title contains text.
func (m *Manager) Search(text string) []*tree.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.root == nil {
		return nil
	}
	return cloneAll(m.root.Search(text))
}

func cloneAll(nodes []*tree.Node) []*tree.Node {
	if nodes == nil {
		return nil
	}
	out := make([]*tree.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// RequestUpdate changes the title, url, icon or color of a node; other
// fields of p are ignored. Title and url go to the bookmark service first
// and nothing changes locally if it refuses. The change is then applied,
// persisted and announced with a Changed event. Folders whose rendering
// changed are also sent to the native companion.
func (m *Manager) RequestUpdate(ctx context.Context, id string, p tree.Patch) (UpdateResult, error) {
	if !m.started() {
		return UpdateResult{}, ErrNotStarted
	}
	p = tree.Patch{Title: p.Title, URL: p.URL, Icon: p.Icon, Color: p.Color}
	if p.IsEmpty() {
		return UpdateResult{}, fmt.Errorf("reconcile: update %s: empty patch", id)
	}
	if m.Get(id) == nil {
		return UpdateResult{}, fmt.Errorf("%w: %s", bookmarks.ErrNotFound, id)
	}

	if info, ok := p.ChangeInfo(); ok {
		if _, err := m.service.Update(ctx, id, info); err != nil {
			return UpdateResult{}, fmt.Errorf("reconcile: update %s: %w", id, err)
		}
	}

	m.mu.Lock()
	n := m.root.Get(id)
	if n == nil {
		m.mu.Unlock()
		return UpdateResult{}, fmt.Errorf("%w: %s", bookmarks.ErrNotFound, id)
	}
	if p.URL != nil && p.Icon == nil {
		if origin, ok := originChange(n, *p.URL); ok {
			p.Icon = &origin
			if m.icons != nil {
				m.icons.Schedule(origin)
			}
		}
	}
	n.Update(p, "")
	updated := n.Clone()
	m.mu.Unlock()

	m.persist.request()

	result := UpdateResult{Node: updated}
	if updated.IsFolder() && p.AffectsStyle() {
		result.Styled = m.native.UpdateFolder(ctx, native.FolderStyle{
			ID:    updated.ID,
			Title: updated.Title,
			Icon:  updated.Icon,
			Color: updated.Color,
		})
	}
	m.emit(Changed{ID: id, Node: updated.Clone()})
	return result, nil
}

// CreateBookmark asks the bookmark service to create a node. The live tree
// picks it up from the resulting Created notification.
func (m *Manager) CreateBookmark(ctx context.Context, details model.CreateDetails) (*model.Node, error) {
	created, err := m.service.Create(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("reconcile: create: %w", err)
	}
	return created, nil
}
