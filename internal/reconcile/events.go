package reconcile

import (
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// Event is re-emitted to subscribers after the live tree has applied a
// change. Nodes are copies and may be kept by the subscriber.
type Event interface {
	NodeID() string
	event()
}

// Created reports a node added to the live tree.
type Created struct {
	ID   string
	Node *tree.Node
}

// Changed reports a node whose fields changed, authoritative or not.
type Changed struct {
	ID   string
	Node *tree.Node
}

// Removed reports a node dropped from the live tree. Node is the subtree as
// it was before removal.
type Removed struct {
	ID   string
	Node *tree.Node
}

// Moved reports a node placed under a new parent or at a new index.
type Moved struct {
	ID   string
	Node *tree.Node
	Info model.MoveInfo
}

// NodeID returns the id of the node the event is about.
func (e Created) NodeID() string { return e.ID }
func (e Changed) NodeID() string { return e.ID }
func (e Removed) NodeID() string { return e.ID }
func (e Moved) NodeID() string   { return e.ID }

func (Created) event() {}
func (Changed) event() {}
func (Removed) event() {}
func (Moved) event()   {}
