package bookmarks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikbrunner/bmsync/internal/model"
)

// Memory is an in-process bookmark service. It backs tests and the CLI when
// no places file is configured.
type Memory struct {
	mu    sync.Mutex
	root  *model.Node
	notes *notifier
	now   func() time.Time
}

// NewMemory returns a service holding the browser's empty built-in folders.
func NewMemory() *Memory {
	root := &model.Node{ID: model.RootID, Kind: model.KindFolder, Children: []*model.Node{}}
	for i, f := range []struct{ id, title string }{
		{model.MenuID, "Bookmarks Menu"},
		{model.ToolbarID, "Bookmarks Toolbar"},
		{model.UnfiledID, "Other Bookmarks"},
		{model.MobileID, "Mobile Bookmarks"},
	} {
		root.Children = append(root.Children, &model.Node{
			ID:       f.id,
			Title:    f.title,
			Index:    i,
			ParentID: model.StringPtr(model.RootID),
			Kind:     model.KindFolder,
			Children: []*model.Node{},
		})
	}
	return NewMemoryFrom(root)
}

// NewMemoryFrom returns a service holding a copy of root.
func NewMemoryFrom(root *model.Node) *Memory {
	return &Memory{
		root:  root.Clone(),
		notes: newNotifier(),
		now:   time.Now,
	}
}

// GetTree returns a copy of the whole tree.
func (m *Memory) GetTree(ctx context.Context) (*model.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root.Clone(), nil
}

// Create inserts a node under details.ParentID, at details.Index or at the
// end, and emits Created.
func (m *Memory) Create(ctx context.Context, details model.CreateDetails) (*model.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent := model.Find(m.root, details.ParentID)
	if parent == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, details.ParentID)
	}
	if !parent.IsFolder() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParent, details.ParentID)
	}

	kind := details.Kind
	if kind == "" {
		kind = model.KindBookmark
		if details.URL == "" {
			kind = model.KindFolder
		}
	}
	n := &model.Node{
		ID:        uuid.NewString(),
		Title:     details.Title,
		ParentID:  model.StringPtr(parent.ID),
		Kind:      kind,
		URL:       details.URL,
		DateAdded: m.now().UnixMilli(),
	}
	if kind == model.KindFolder {
		n.Children = []*model.Node{}
	}

	index := len(parent.Children)
	if details.Index != nil {
		index = max(0, min(*details.Index, index))
	}
	parent.Children = slices.Insert(parent.Children, index, n)
	renumber(parent)

	m.notes.emit(model.Created{ID: n.ID, Node: n.Shallow()})
	return n.Clone(), nil
}

// Update sets a node's title and/or url and emits Changed.
func (m *Memory) Update(ctx context.Context, id string, info model.ChangeInfo) (*model.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := model.Find(m.root, id)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if n.Unmodifiable != "" || n.ParentID == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnmodifiable, id)
	}
	if info.Title != nil {
		n.Title = *info.Title
	}
	if info.URL != nil && n.Kind == model.KindBookmark {
		n.URL = *info.URL
	} else {
		info.URL = nil
	}
	m.notes.emit(model.Changed{ID: id, Info: info})
	return n.Clone(), nil
}

// Remove deletes a node with its subtree and emits Removed.
func (m *Memory) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := model.Find(m.root, id)
	if n == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if n.Unmodifiable != "" || n.ParentID == nil {
		return fmt.Errorf("%w: %s", ErrUnmodifiable, id)
	}
	parent := model.Find(m.root, n.Parent())
	index := slices.Index(parent.Children, n)
	parent.Children = slices.Delete(parent.Children, index, index+1)
	renumber(parent)

	m.notes.emit(model.Removed{
		ID:   id,
		Info: model.RemoveInfo{ParentID: parent.ID, Index: index, Node: n.Clone()},
	})
	return nil
}

// Move re-parents a node to parentID at index (clamped) and emits Moved.
func (m *Memory) Move(ctx context.Context, id, parentID string, index int) (*model.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := model.Find(m.root, id)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if n.Unmodifiable != "" || n.ParentID == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnmodifiable, id)
	}
	parent := model.Find(m.root, parentID)
	if parent == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, parentID)
	}
	if !parent.IsFolder() || model.Find(n, parentID) != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParent, parentID)
	}

	oldParent := model.Find(m.root, n.Parent())
	oldIndex := slices.Index(oldParent.Children, n)
	oldParent.Children = slices.Delete(oldParent.Children, oldIndex, oldIndex+1)
	renumber(oldParent)

	index = max(0, min(index, len(parent.Children)))
	parent.Children = slices.Insert(parent.Children, index, n)
	n.ParentID = model.StringPtr(parent.ID)
	renumber(parent)

	m.notes.emit(model.Moved{
		ID: id,
		Info: model.MoveInfo{
			ParentID:    parent.ID,
			Index:       index,
			OldParentID: oldParent.ID,
			OldIndex:    oldIndex,
		},
	})
	return n.Clone(), nil
}

// Notifications returns the channel change notifications are sent on.
func (m *Memory) Notifications() <-chan model.Notification {
	return m.notes.out
}

// Close stops notification delivery.
func (m *Memory) Close() error {
	m.notes.close()
	return nil
}

func renumber(folder *model.Node) {
	for i, child := range folder.Children {
		child.Index = i
	}
}
