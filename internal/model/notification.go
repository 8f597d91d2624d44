package model

// CreateDetails describes a node to create through the bookmark service.
type CreateDetails struct {
	ParentID string
	Index    *int // nil = append
	Title    string
	URL      string
	Kind     Kind
}

// ChangeInfo holds the fields reported by a change notification. Nil fields
// did not change.
type ChangeInfo struct {
	Title *string `json:"title,omitempty"`
	URL   *string `json:"url,omitempty"`
}

// MoveInfo describes a node moving within the tree.
type MoveInfo struct {
	ParentID    string `json:"parentId"`
	Index       int    `json:"index"`
	OldParentID string `json:"oldParentId"`
	OldIndex    int    `json:"oldIndex"`
}

// RemoveInfo describes a removed node.
type RemoveInfo struct {
	ParentID string `json:"parentId"`
	Index    int    `json:"index"`
	Node     *Node  `json:"node,omitempty"`
}

// Notification is a change reported by the bookmark service. The set of
// implementations is closed: Created, Changed, Removed and Moved.
type Notification interface {
	NodeID() string
	notification()
}

// Created reports a new node.
type Created struct {
	ID   string
	Node *Node
}

// Changed reports new title or url values for a node.
type Changed struct {
	ID   string
	Info ChangeInfo
}

// Removed reports a node (and its subtree) being deleted.
type Removed struct {
	ID   string
	Info RemoveInfo
}

// Moved reports a node changing parent or position.
type Moved struct {
	ID   string
	Info MoveInfo
}

// NodeID returns the id of the node the notification is about.
func (c Created) NodeID() string { return c.ID }
func (c Changed) NodeID() string { return c.ID }
func (r Removed) NodeID() string { return r.ID }
func (m Moved) NodeID() string   { return m.ID }

func (Created) notification() {}
func (Changed) notification() {}
func (Removed) notification() {}
func (Moved) notification()   {}
