package tree

import (
	"cmp"
	"slices"

	"github.com/nikbrunner/bmsync/internal/model"
)

// Filter returns a new tree holding only the nodes that satisfy keep. A
// surviving node is attached to its nearest surviving ancestor; nodes with
// no surviving ancestor are dropped. It returns nil when n itself does not
// survive. The receiver is not modified.
func (n *Node) Filter(keep func(*Node) bool) *Node {
	type entry struct {
		node   *Node
		anchor *Node
	}

	result := n.Clone()
	if !keep(result) {
		return nil
	}

	var toVisit queue[entry]
	for _, child := range detach(result) {
		toVisit.push(entry{node: child, anchor: result})
	}

	for toVisit.len() > 0 {
		current := toVisit.pop()
		node := current.node
		children := detach(node)

		anchor := current.anchor
		if keep(node) {
			if node.Parent() != anchor.ID {
				parentID := anchor.ID
				node.ParentID = &parentID
			}
			anchor.Children = append(anchor.Children, node)
			if node.Children != nil {
				anchor = node
			}
		}
		for _, child := range children {
			toVisit.push(entry{node: child, anchor: anchor})
		}
	}
	return result
}

// detach empties the children of a folder and returns the previous ones.
func detach(n *Node) []*Node {
	children := n.Children
	if n.Children != nil {
		n.Children = []*Node{}
	}
	return children
}

// Folders returns the folder-only projection of the tree.
func (n *Node) Folders() *Node {
	return n.Filter(func(node *Node) bool {
		return node.IsFolder()
	})
}

// CleanRemoved removes every node whose id is absent from the authoritative
// tree and returns the ids of the removed subtree roots.
func (n *Node) CleanRemoved(authoritative *model.Node) []string {
	live := model.Index(authoritative)
	var removed []string

	n.Walk(func(current *Node) *Node {
		if _, ok := live[current.ID]; !ok {
			if n.Remove(current.ID) {
				removed = append(removed, current.ID)
			}
		}
		return nil
	})
	return removed
}

// Move detaches the node with the given id and inserts it into the folder
// parentID at position index (clamped). Indexes of the old and new parent's
// children are renumbered to match their positions. It reports false when
// the node or the folder is missing, or when the folder lies inside the
// moved subtree.
func (n *Node) Move(id, parentID string, index int) bool {
	target := n.Get(id)
	if target == nil || target == n {
		return false
	}
	parent := n.Get(parentID)
	if parent == nil || !parent.IsFolder() || target.Get(parentID) != nil {
		return false
	}

	if old := n.GetParent(id); old != nil {
		old.Children = slices.DeleteFunc(old.Children, func(child *Node) bool {
			return child.ID == id
		})
		old.renumber()
	}

	index = max(0, min(index, len(parent.Children)))
	target.ParentID = &parentID
	parent.Children = slices.Insert(parent.Children, index, target)
	parent.renumber()
	return true
}

func (n *Node) renumber() {
	for i, child := range n.Children {
		child.Index = i
	}
}

// SortByIndex orders every folder's children by their authoritative index.
// The sort is stable so ties keep their current order.
func (n *Node) SortByIndex() {
	n.Walk(func(current *Node) *Node {
		slices.SortStableFunc(current.Children, func(a, b *Node) int {
			return cmp.Compare(a.Index, b.Index)
		})
		return nil
	})
}
