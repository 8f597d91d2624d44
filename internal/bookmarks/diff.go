package bookmarks

import (
	"slices"

	"github.com/nikbrunner/bmsync/internal/model"
)

// Diff returns the notifications that turn old into new when applied in
// order by a consumer that inserts created and moved nodes at their index.
//
// Folders are visited breadth-first in new, so a folder is in place before
// anything is put into it. Within a folder only the children that are not
// already at their final position produce a Created or Moved. Changed
// notifications follow, then one Removed per topmost vanished subtree; nodes
// that moved out of a removed folder have been moved away by then.
func Diff(old, new *model.Node) []model.Notification {
	if old == nil || new == nil {
		return nil
	}
	oldIndex := model.Index(old)
	newIndex := model.Index(new)
	sim := newLayout(old)

	var notes []model.Notification

	new.Walk(func(folder *model.Node) bool {
		if !folder.IsFolder() {
			return true
		}
		for i, child := range folder.Children {
			if sim.at(folder.ID, i) == child.ID {
				continue
			}
			if oldParent, ok := sim.parent[child.ID]; ok {
				oldPos := sim.position(child.ID)
				sim.move(child.ID, folder.ID, i)
				notes = append(notes, model.Moved{
					ID: child.ID,
					Info: model.MoveInfo{
						ParentID:    folder.ID,
						Index:       i,
						OldParentID: oldParent,
						OldIndex:    oldPos,
					},
				})
				continue
			}
			sim.insert(child.ID, folder.ID, i)
			notes = append(notes, model.Created{ID: child.ID, Node: child.Shallow()})
		}
		return true
	})

	new.Walk(func(n *model.Node) bool {
		before, ok := oldIndex[n.ID]
		if !ok {
			return true
		}
		var info model.ChangeInfo
		if before.Title != n.Title {
			info.Title = model.StringPtr(n.Title)
		}
		if before.URL != n.URL {
			info.URL = model.StringPtr(n.URL)
		}
		if info.Title != nil || info.URL != nil {
			notes = append(notes, model.Changed{ID: n.ID, Info: info})
		}
		return true
	})

	old.Walk(func(n *model.Node) bool {
		if _, ok := newIndex[n.ID]; ok || n.ParentID == nil {
			return true
		}
		if _, parentLive := newIndex[n.Parent()]; !parentLive {
			return true
		}
		parentID := sim.parent[n.ID]
		notes = append(notes, model.Removed{
			ID: n.ID,
			Info: model.RemoveInfo{
				ParentID: parentID,
				Index:    sim.position(n.ID),
				Node:     n.Clone(),
			},
		})
		sim.remove(n.ID)
		return true
	})

	return notes
}

// layout tracks where every node sits while notifications are replayed.
type layout struct {
	children map[string][]string
	parent   map[string]string
}

func newLayout(root *model.Node) *layout {
	l := &layout{
		children: make(map[string][]string),
		parent:   make(map[string]string),
	}
	root.Walk(func(n *model.Node) bool {
		for _, child := range n.Children {
			l.children[n.ID] = append(l.children[n.ID], child.ID)
			l.parent[child.ID] = n.ID
		}
		return true
	})
	return l
}

func (l *layout) at(folderID string, i int) string {
	siblings := l.children[folderID]
	if i < len(siblings) {
		return siblings[i]
	}
	return ""
}

func (l *layout) position(id string) int {
	return slices.Index(l.children[l.parent[id]], id)
}

func (l *layout) remove(id string) {
	parentID, ok := l.parent[id]
	if !ok {
		return
	}
	l.children[parentID] = slices.DeleteFunc(l.children[parentID], func(s string) bool {
		return s == id
	})
	delete(l.parent, id)
}

func (l *layout) insert(id, folderID string, i int) {
	siblings := l.children[folderID]
	i = max(0, min(i, len(siblings)))
	l.children[folderID] = slices.Insert(siblings, i, id)
	l.parent[id] = folderID
}

func (l *layout) move(id, folderID string, i int) {
	l.remove(id)
	l.insert(id, folderID, i)
}
