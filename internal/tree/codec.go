package tree

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Encode serializes the tree for storage.
func Encode(root *Node) ([]byte, error) {
	data, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("tree: encode: %w", err)
	}
	return data, nil
}

// Decode parses a stored tree. Folders always come back with a non-nil
// children slice.
func Decode(data []byte) (*Node, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("tree: decode: %w", err)
	}
	if root.ID == "" {
		return nil, fmt.Errorf("tree: decode: missing root id")
	}
	root.Walk(func(n *Node) *Node {
		if n.IsFolder() && n.Children == nil {
			n.Children = []*Node{}
		}
		return nil
	})
	return &root, nil
}
