// Package tree holds the extended bookmark tree: a mirror of the
// authoritative tree whose nodes also carry extension-only attributes
// (icon and color) that the bookmark service knows nothing about.
//
// Every lookup and mutation is built on a single breadth-first traversal,
// Walk. Missing targets are never an error: lookups return nil and
// mutations report false.
package tree

import (
	"slices"
	"strings"

	"github.com/nikbrunner/bmsync/internal/model"
)

// Extension defaults given to every new folder.
const (
	DefaultFolderIcon  = "folder-outline"
	DefaultFolderColor = "#0F172A"
)

// IconScheduler queues a favicon refresh for a bookmark origin. Schedule
// must not block.
type IconScheduler interface {
	Schedule(origin string)
}

// Node is one entry of the extended tree.
type Node struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Index             int        `json:"index"`
	ParentID          *string    `json:"parentId,omitempty"` // nil = root
	Kind              model.Kind `json:"type"`
	URL               string     `json:"url,omitempty"`
	DateAdded         int64      `json:"dateAdded,omitempty"`
	DateGroupModified int64      `json:"dateGroupModified,omitempty"`
	Unmodifiable      string     `json:"unmodifiable,omitempty"`
	Children          []*Node    `json:"children,omitempty"` // folders only

	// Extension-only. For folders Icon is an icon name; for bookmarks it is
	// the origin used as favicon cache key.
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// New builds an extended node, and all of its descendants, from an
// authoritative node. Folders get the default icon and color; http(s)
// bookmarks get their origin as icon and a favicon refresh is scheduled on
// icons, which may be nil.
func New(raw *model.Node, icons IconScheduler) *Node {
	n := &Node{
		ID:                raw.ID,
		Title:             raw.Title,
		Index:             raw.Index,
		Kind:              raw.Kind,
		URL:               raw.URL,
		DateAdded:         raw.DateAdded,
		DateGroupModified: raw.DateGroupModified,
		Unmodifiable:      raw.Unmodifiable,
	}
	if raw.ParentID != nil {
		parentID := *raw.ParentID
		n.ParentID = &parentID
	}
	if raw.IsFolder() || raw.Children != nil {
		n.Children = make([]*Node, 0, len(raw.Children))
		for _, child := range raw.Children {
			n.Children = append(n.Children, New(child, icons))
		}
	}
	n.setIcon(icons)
	return n
}

// Restore prepares a tree loaded from storage: missing folder defaults and
// bookmark icons are filled in, stored ones are kept. Favicon refreshes are
// scheduled for every http(s) bookmark still showing its origin.
func Restore(root *Node, icons IconScheduler) *Node {
	root.Walk(func(n *Node) *Node {
		if n.IsFolder() && n.Children == nil {
			n.Children = []*Node{}
		}
		n.setIcon(icons)
		return nil
	})
	return root
}

func (n *Node) setIcon(icons IconScheduler) {
	switch n.Kind {
	case model.KindFolder:
		if n.Icon == "" {
			n.Icon = DefaultFolderIcon
		}
		if n.Color == "" {
			n.Color = DefaultFolderColor
		}
	case model.KindBookmark:
		origin, ok := model.Origin(n.URL)
		if !ok {
			return
		}
		if n.Icon == "" {
			n.Icon = origin
		}
		if n.Icon == origin && icons != nil {
			icons.Schedule(origin)
		}
	}
}

// IsFolder reports whether the node can hold children.
func (n *Node) IsFolder() bool {
	return n.Kind == model.KindFolder
}

// Parent returns the parent id, or "" for the root.
func (n *Node) Parent() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// Raw projects the node onto the authoritative field set, without children.
func (n *Node) Raw() *model.Node {
	raw := &model.Node{
		ID:                n.ID,
		Title:             n.Title,
		Index:             n.Index,
		Kind:              n.Kind,
		URL:               n.URL,
		DateAdded:         n.DateAdded,
		DateGroupModified: n.DateGroupModified,
		Unmodifiable:      n.Unmodifiable,
	}
	if n.ParentID != nil {
		parentID := *n.ParentID
		raw.ParentID = &parentID
	}
	return raw
}

// Walk visits the node itself and then its descendants breadth-first.
// When visit returns a non-nil node the traversal stops and that node is
// returned.
func (n *Node) Walk(visit func(*Node) *Node) *Node {
	var toVisit queue[*Node]
	toVisit.push(n)

	for toVisit.len() > 0 {
		current := toVisit.pop()
		if res := visit(current); res != nil {
			return res
		}
		for _, child := range current.Children {
			toVisit.push(child)
		}
	}
	return nil
}

// Get returns the node with the given id, or nil.
func (n *Node) Get(id string) *Node {
	if n.ID == id {
		return n
	}
	return n.Walk(func(child *Node) *Node {
		if child.ID == id {
			return child
		}
		return nil
	})
}

// Add appends child to the children of the node named by child.ParentID.
// It reports false, leaving the tree untouched, when the child has no parent
// id or the parent is not a folder of this tree. The child is appended; use
// Move or SortByIndex for positional correctness.
func (n *Node) Add(child *Node) bool {
	if child.ParentID == nil {
		return false
	}
	parentID := *child.ParentID
	if parentID == n.ID {
		if !n.IsFolder() {
			return false
		}
		n.Children = append(n.Children, child)
		return true
	}
	parent := n.Get(parentID)
	if parent == nil {
		return false
	}
	return parent.Add(child)
}

// Update applies p to the node with the given id, or to n itself when id is
// empty. It returns the updated node, or nil when id is not found.
func (n *Node) Update(p Patch, id string) *Node {
	target := n
	if id != "" {
		target = n.Get(id)
	}
	if target == nil {
		return nil
	}
	p.apply(target)
	return target
}

// Remove detaches the node with the given id, with its subtree, from its
// parent. It reports whether anything was removed.
func (n *Node) Remove(id string) bool {
	parent := n.GetParent(id)
	if parent == nil {
		return false
	}
	before := len(parent.Children)
	parent.Children = slices.DeleteFunc(parent.Children, func(child *Node) bool {
		return child.ID == id
	})
	return len(parent.Children) != before
}

// GetParent returns the folder holding the node with the given id. The
// parent id recorded on the node is tried first; if it is stale the tree is
// searched for the folder that actually holds the node.
func (n *Node) GetParent(id string) *Node {
	item := n.Get(id)
	if item == nil || item == n {
		return nil
	}
	if item.ParentID != nil {
		if parent := n.Get(*item.ParentID); parent != nil && parent.holds(id) {
			return parent
		}
	}
	return n.Walk(func(candidate *Node) *Node {
		if candidate.holds(id) {
			return candidate
		}
		return nil
	})
}

func (n *Node) holds(id string) bool {
	return slices.ContainsFunc(n.Children, func(child *Node) bool {
		return child.ID == id
	})
}

// GetChildren returns the children of the node with the given id, or nil
// when it is missing or not a folder.
func (n *Node) GetChildren(id string) []*Node {
	target := n.Get(id)
	if target == nil {
		return nil
	}
	return target.Children
}

// Search returns every node, n included, whose title contains text,
// ignoring case, in breadth-first order.
func (n *Node) Search(text string) []*Node {
	var result []*Node
	needle := strings.ToLower(text)

	n.Walk(func(child *Node) *Node {
		if strings.Contains(strings.ToLower(child.Title), needle) {
			result = append(result, child)
		}
		return nil
	})
	return result
}

// Len counts the node and all of its descendants.
func (n *Node) Len() int {
	count := 0
	n.Walk(func(*Node) *Node {
		count++
		return nil
	})
	return count
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	c := *n
	if n.ParentID != nil {
		parentID := *n.ParentID
		c.ParentID = &parentID
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}
