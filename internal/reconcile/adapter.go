package reconcile

import (
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// Apply applies one bookmark service notification to the live tree,
// persists the result and emits the matching event. Notifications about
// unknown nodes, and Created for a node already present, change nothing.
func (m *Manager) Apply(note model.Notification) {
	var e Event
	switch note := note.(type) {
	case model.Created:
		e = m.created(note)
	case model.Changed:
		e = m.changed(note)
	case model.Removed:
		e = m.removed(note)
	case model.Moved:
		e = m.moved(note)
	}
	if e == nil {
		return
	}
	m.persist.request()
	m.emit(e)
}

func (m *Manager) created(note model.Created) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root == nil || note.Node == nil {
		return nil
	}

	if m.root.Get(note.ID) != nil {
		m.log.Debug().Str("id", note.ID).Msg("created: already known")
		return nil
	}
	raw := prune(note.Node, m.root)
	n := tree.New(raw, m.icons)
	if !m.root.Add(n) {
		m.log.Debug().Str("id", note.ID).Str("parent", raw.Parent()).Msg("created: parent unknown")
		return nil
	}
	m.root.Move(n.ID, n.Parent(), raw.Index)
	return Created{ID: n.ID, Node: n.Clone()}
}

// prune copies raw without the descendants the live tree already holds.
func prune(raw *model.Node, root *tree.Node) *model.Node {
	raw = raw.Clone()
	raw.Walk(func(n *model.Node) bool {
		kept := n.Children[:0]
		for _, child := range n.Children {
			if root.Get(child.ID) == nil {
				kept = append(kept, child)
			}
		}
		if n.Children != nil {
			n.Children = kept
		}
		return true
	})
	return raw
}

func (m *Manager) changed(note model.Changed) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root == nil {
		return nil
	}

	n := m.root.Get(note.ID)
	if n == nil {
		m.log.Debug().Str("id", note.ID).Msg("changed: unknown node")
		return nil
	}
	p := tree.ChangePatch(note.Info)
	if note.Info.URL != nil {
		if origin, ok := originChange(n, *note.Info.URL); ok {
			p.Icon = &origin
			if m.icons != nil {
				m.icons.Schedule(origin)
			}
		}
	}
	n.Update(p, "")
	return Changed{ID: n.ID, Node: n.Clone()}
}

func (m *Manager) removed(note model.Removed) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root == nil {
		return nil
	}

	n := m.root.Get(note.ID)
	parent := m.root.GetParent(note.ID)
	if n == nil || parent == nil {
		m.log.Debug().Str("id", note.ID).Msg("removed: unknown node")
		return nil
	}
	m.root.Remove(note.ID)
	for i, child := range parent.Children {
		child.Index = i
	}
	return Removed{ID: n.ID, Node: n}
}

func (m *Manager) moved(note model.Moved) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root == nil {
		return nil
	}

	if !m.root.Move(note.ID, note.Info.ParentID, note.Info.Index) {
		m.log.Debug().
			Str("id", note.ID).
			Str("parent", note.Info.ParentID).
			Msg("moved: unknown node or parent")
		return nil
	}
	return Moved{ID: note.ID, Node: m.root.Get(note.ID).Clone(), Info: note.Info}
}
