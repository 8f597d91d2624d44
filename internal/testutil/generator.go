package testutil

import (
	"fmt"
	"slices"
	"strconv"

	"pgregory.net/rapid"

	"github.com/nikbrunner/bmsync/internal/model"
)

var kinds = []model.Kind{model.KindBookmark, model.KindFolder, model.KindSeparator}

// DrawTree draws a random authoritative tree of up to maxNodes nodes below
// the root. Ids are "n0", "n1", ... in creation order, so two drawn trees
// share ids when they share a prefix of creations.
func DrawTree(t *rapid.T, label string, maxNodes int) *model.Node {
	root := Root()
	folders := []*model.Node{root}

	size := rapid.IntRange(0, maxNodes).Draw(t, label+"/size")
	for i := 0; i < size; i++ {
		parent := folders[rapid.IntRange(0, len(folders)-1).Draw(t, label+"/parent")]
		node := &model.Node{
			ID:       fmt.Sprintf("n%d", i),
			Title:    rapid.StringMatching(`[A-Za-z ]{0,8}`).Draw(t, label+"/title"),
			Kind:     rapid.SampledFrom(kinds).Draw(t, label+"/kind"),
			Index:    len(parent.Children),
			ParentID: model.StringPtr(parent.ID),
		}
		switch node.Kind {
		case model.KindFolder:
			node.Children = []*model.Node{}
			folders = append(folders, node)
		case model.KindBookmark:
			node.URL = fmt.Sprintf("https://site%d.example/page/%d", i%4, i)
		}
		parent.Children = append(parent.Children, node)
	}
	return root
}

// IDs returns every id under root in breadth-first order, duplicates
// included.
func IDs(root *model.Node) []string {
	var ids []string
	root.Walk(func(n *model.Node) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}

// Mutate returns a copy of root with a random sequence of renames, moves,
// removals and insertions applied, the way a browser would change it. Ids
// keep their kind; inserted nodes get fresh ids "x0", "x1", ...
func Mutate(t *rapid.T, root *model.Node) *model.Node {
	root = root.Clone()
	steps := rapid.IntRange(0, 12).Draw(t, "steps")
	for i := 0; i < steps; i++ {
		var nodes, folders []*model.Node
		root.Walk(func(n *model.Node) bool {
			if n != root {
				nodes = append(nodes, n)
			}
			if n.IsFolder() {
				folders = append(folders, n)
			}
			return true
		})

		switch op := rapid.IntRange(0, 3).Draw(t, "op"); {
		case op == 0 && len(nodes) > 0:
			n := rapid.SampledFrom(nodes).Draw(t, "rename")
			n.Title += "*"
		case op == 1 && len(nodes) > 0:
			n := rapid.SampledFrom(nodes).Draw(t, "move")
			target := rapid.SampledFrom(folders).Draw(t, "to")
			if model.Find(n, target.ID) != nil {
				continue
			}
			detach(root, n)
			insert(target, n, rapid.IntRange(0, len(target.Children)).Draw(t, "at"))
		case op == 2 && len(nodes) > 0:
			detach(root, rapid.SampledFrom(nodes).Draw(t, "remove"))
		default:
			target := rapid.SampledFrom(folders).Draw(t, "into")
			n := Bookmark(fmt.Sprintf("x%d", i), "added", "https://added.example/"+strconv.Itoa(i))
			if rapid.Bool().Draw(t, "folder") {
				n = Folder(fmt.Sprintf("x%d", i), "added")
			}
			insert(target, n, rapid.IntRange(0, len(target.Children)).Draw(t, "at"))
		}
	}
	return root
}

func detach(root, n *model.Node) {
	parent := model.Find(root, n.Parent())
	parent.Children = slices.DeleteFunc(parent.Children, func(c *model.Node) bool { return c == n })
	Renumber(parent)
}

func insert(folder, n *model.Node, at int) {
	n.ParentID = model.StringPtr(folder.ID)
	folder.Children = slices.Insert(folder.Children, at, n)
	Renumber(folder)
}

// Renumber sets every child's index to its position.
func Renumber(folder *model.Node) {
	for i, child := range folder.Children {
		child.Index = i
	}
}
