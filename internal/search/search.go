package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// SearchResult represents a fuzzy search match.
type SearchResult struct {
	Node           *tree.Node
	Path           string // titles of the enclosing folders, outermost first
	MatchedIndexes []int
	Score          int
}

type entry struct {
	node *tree.Node
	path string
}

// bookmarkTitles implements fuzzy.Source for the bookmarks of a tree.
type bookmarkTitles []entry

func (bt bookmarkTitles) String(i int) string {
	return bt[i].node.Title
}

func (bt bookmarkTitles) Len() int {
	return len(bt)
}

// FuzzySearchBookmarks searches the bookmarks of the tree by title using
// fuzzy matching. Returns results sorted by match score (best first).
func FuzzySearchBookmarks(root *tree.Node, query string) []SearchResult {
	if query == "" || root == nil {
		return nil
	}

	bookmarks := collect(root)
	matches := fuzzy.FindFrom(query, bookmarks)

	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		results[i] = SearchResult{
			Node:           bookmarks[m.Index].node,
			Path:           bookmarks[m.Index].path,
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}

	return results
}

// collect lists the bookmarks in document order with their folder path.
func collect(root *tree.Node) bookmarkTitles {
	var result bookmarkTitles
	var visit func(n *tree.Node, path []string)
	visit = func(n *tree.Node, path []string) {
		for _, child := range n.Children {
			switch child.Kind {
			case model.KindFolder:
				visit(child, append(path, child.Title))
			case model.KindBookmark:
				result = append(result, entry{node: child, path: strings.Join(path, " / ")})
			}
		}
	}
	visit(root, nil)
	return result
}
