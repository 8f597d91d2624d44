package model

// Kind is the type of an entry in the bookmark tree.
type Kind string

const (
	KindBookmark  Kind = "bookmark"
	KindFolder    Kind = "folder"
	KindSeparator Kind = "separator"
)

// Reserved ids of the browser's built-in folders.
const (
	RootID    = "root________"
	MenuID    = "menu________"
	ToolbarID = "toolbar_____"
	UnfiledID = "unfiled_____"
	MobileID  = "mobile______"
)

// Node is an entry of the authoritative bookmark tree, as reported by the
// bookmark service. It never carries extension-only attributes.
type Node struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Index             int     `json:"index"`
	ParentID          *string `json:"parentId,omitempty"` // nil = root
	Kind              Kind    `json:"type"`
	URL               string  `json:"url,omitempty"`
	DateAdded         int64   `json:"dateAdded,omitempty"`         // ms since epoch
	DateGroupModified int64   `json:"dateGroupModified,omitempty"` // ms since epoch, folders only
	Unmodifiable      string  `json:"unmodifiable,omitempty"`      // "managed" when the service forbids edits
	Children          []*Node `json:"children,omitempty"`
}

// IsFolder reports whether the node can hold children.
func (n *Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// Parent returns the parent id, or "" for the root.
func (n *Node) Parent() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// Clone returns a deep copy of the node and its descendants.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
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

// Shallow returns a copy of the node without its descendants. Folders keep
// an empty, non-nil children slice.
func (n *Node) Shallow() *Node {
	c := n.Clone()
	c.Children = nil
	if c.IsFolder() {
		c.Children = []*Node{}
	}
	return c
}

// Walk visits the node and its descendants breadth-first until visit
// returns false.
func (n *Node) Walk(visit func(*Node) bool) {
	queue := []*Node{n}
	for head := 0; head < len(queue); head++ {
		current := queue[head]
		if !visit(current) {
			return
		}
		queue = append(queue, current.Children...)
	}
}

// Find returns the node with the given id under root, or nil.
func Find(root *Node, id string) *Node {
	if root == nil {
		return nil
	}
	var found *Node
	root.Walk(func(n *Node) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Index maps every id under root to its node.
func Index(root *Node) map[string]*Node {
	index := make(map[string]*Node)
	if root == nil {
		return index
	}
	root.Walk(func(n *Node) bool {
		index[n.ID] = n
		return true
	})
	return index
}

// Equal compares two nodes over the authoritative field set only: id, title,
// type, url, parentId, index, dateAdded and dateGroupModified. Children are
// not compared.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID &&
		a.Title == b.Title &&
		a.Kind == b.Kind &&
		a.URL == b.URL &&
		ptrEqual(a.ParentID, b.ParentID) &&
		a.Index == b.Index &&
		a.DateAdded == b.DateAdded &&
		a.DateGroupModified == b.DateGroupModified
}

// ptrEqual compares two string pointers for equality.
func ptrEqual(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}
