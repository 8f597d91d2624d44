package reconcile_test

import (
	"fmt"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"pgregory.net/rapid"

	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/reconcile"
	"github.com/nikbrunner/bmsync/internal/testutil"
	"github.com/nikbrunner/bmsync/internal/tree"
)

func TestMerge_RenameKeepsStyle(t *testing.T) {
	stored := tree.New(testutil.Root(testutil.Folder("A", "FolderA")), nil)
	assert.Equal(t, stored.Get("A").Icon, tree.DefaultFolderIcon)
	assert.Equal(t, stored.Get("A").Color, tree.DefaultFolderColor)

	report := reconcile.Merge(stored, testutil.Root(testutil.Folder("A", "Renamed")), nil)

	a := stored.Get("A")
	assert.Equal(t, a.Title, "Renamed")
	assert.Equal(t, a.Icon, tree.DefaultFolderIcon)
	assert.Equal(t, a.Color, tree.DefaultFolderColor)
	assert.DeepEqual(t, report, reconcile.Report{Updated: 1})
}

func TestMerge_CustomStyleSurvivesChanges(t *testing.T) {
	stored := tree.New(testutil.Sample(), nil)
	stored.Update(tree.StylePatch("code", "#22C55E"), "dev")

	authoritative := testutil.Sample()
	dev := model.Find(authoritative, "dev")
	dev.Title = "Dev"
	dev.DateGroupModified = 1700000500000

	reconcile.Merge(stored, authoritative, nil)

	got := stored.Get("dev")
	assert.Equal(t, got.Title, "Dev")
	assert.Equal(t, got.DateGroupModified, int64(1700000500000))
	assert.Equal(t, got.Icon, "code")
	assert.Equal(t, got.Color, "#22C55E")
}

func TestMerge_RemovesMissing(t *testing.T) {
	stored := tree.New(testutil.Root(
		testutil.Folder("A", "FolderA"),
		testutil.Folder("B", "FolderB", testutil.Bookmark("b1", "inside", "https://b.example")),
	), nil)

	report := reconcile.Merge(stored, testutil.Root(testutil.Folder("A", "FolderA")), nil)

	assert.Assert(t, stored.Get("B") == nil)
	assert.Assert(t, stored.Get("b1") == nil)
	assert.Equal(t, report.Removed, 1)
	assert.Equal(t, stored.Len(), 2)
}

func TestMerge_AddsBookmarkWithFavicon(t *testing.T) {
	stored := tree.New(testutil.Root(testutil.Folder("A", "FolderA")), nil)
	icons := &testutil.Scheduler{}

	report := reconcile.Merge(stored, testutil.Root(
		testutil.Folder("A", "FolderA", testutil.Bookmark("C", "BookmarkC", "https://example.com/x")),
	), icons)

	c := stored.Get("C")
	assert.Assert(t, c != nil)
	assert.Equal(t, c.Icon, "https://example.com")
	assert.Equal(t, c.Parent(), "A")
	assert.DeepEqual(t, icons.Origins(), []string{"https://example.com"})
	assert.Equal(t, report.Added, 1)
}

func TestMerge_AddsNestedFoldersParentFirst(t *testing.T) {
	stored := tree.New(testutil.Root(), nil)

	report := reconcile.Merge(stored, testutil.Sample(), nil)

	assert.Equal(t, report.Added, 7)
	assert.Equal(t, render(stored), renderRaw(testutil.Sample()))
	assert.Equal(t, stored.Get("dev").Icon, tree.DefaultFolderIcon)
}

func TestMerge_MovesAndReorders(t *testing.T) {
	stored := tree.New(testutil.Sample(), nil)
	stored.Update(tree.StylePatch("code", "#22C55E"), "dev")

	// dev moves into the toolbar after news, gh now comes before go
	authoritative := testutil.Root(
		testutil.Folder(model.MenuID, "Bookmarks Menu", testutil.Separator("sep")),
		testutil.Folder(model.ToolbarID, "Bookmarks Toolbar",
			testutil.Bookmark("news", "Hacker News", "https://news.ycombinator.com"),
			testutil.Folder("dev", "Development",
				testutil.Bookmark("gh", "GitHub", "https://github.com/golang/go"),
				testutil.Bookmark("go", "Go", "https://go.dev/doc"),
			),
		),
	)

	reconcile.Merge(stored, authoritative, nil)

	assert.Equal(t, render(stored), renderRaw(authoritative))
	assert.Equal(t, stored.Get("dev").Icon, "code")
	assert.Equal(t, stored.GetParent("dev").ID, model.ToolbarID)
}

func TestMerge_URLChangeFollowsOrigin(t *testing.T) {
	stored := tree.New(testutil.Sample(), nil)
	icons := &testutil.Scheduler{}

	authoritative := testutil.Sample()
	model.Find(authoritative, "go").URL = "https://pkg.go.dev/std"
	model.Find(authoritative, "gh").URL = "https://github.com/golang/tools"

	reconcile.Merge(stored, authoritative, icons)

	assert.Equal(t, stored.Get("go").Icon, "https://pkg.go.dev")
	assert.Equal(t, stored.Get("gh").Icon, "https://github.com")
	assert.DeepEqual(t, icons.Origins(), []string{"https://pkg.go.dev"})
}

func TestMerge_URLChangeKeepsCustomIcon(t *testing.T) {
	stored := tree.New(testutil.Sample(), nil)
	stored.Update(tree.Patch{Icon: model.StringPtr("star")}, "gh")
	stored.Update(tree.Patch{Icon: model.StringPtr("fire")}, "news")
	icons := &testutil.Scheduler{}

	authoritative := testutil.Sample()
	model.Find(authoritative, "gh").URL = "https://github.com/golang/tools"
	model.Find(authoritative, "news").URL = "https://lobste.rs"

	report := reconcile.Merge(stored, authoritative, icons)

	assert.Equal(t, stored.Get("gh").Icon, "star")
	assert.Equal(t, stored.Get("news").Icon, "fire")
	assert.Equal(t, stored.Get("news").URL, "https://lobste.rs")
	assert.Equal(t, len(icons.Origins()), 0)
	assert.Equal(t, report.Updated, 2)
}

func TestMerge_KindChange(t *testing.T) {
	stored := tree.New(testutil.Root(
		testutil.Folder(model.MenuID, "Bookmarks Menu", testutil.Bookmark("x", "X", "https://example.com")),
	), nil)
	authoritative := testutil.Root(
		testutil.Folder(model.MenuID, "Bookmarks Menu", testutil.Folder("x", "X")),
	)

	report := reconcile.Merge(stored, authoritative, nil)

	x := stored.Get("x")
	assert.Equal(t, x.Kind, model.KindFolder)
	assert.Equal(t, x.URL, "")
	assert.Equal(t, x.Icon, tree.DefaultFolderIcon)
	assert.Equal(t, x.Color, tree.DefaultFolderColor)
	assert.Assert(t, x.Children != nil)
	assert.Equal(t, report.Updated, 1)

	again := reconcile.Merge(stored, authoritative, nil)
	assert.Assert(t, !again.Changed(), "kind settled after one pass")
}

func TestMerge_Unchanged(t *testing.T) {
	stored := tree.New(testutil.Sample(), nil)

	report := reconcile.Merge(stored, testutil.Sample(), nil)

	assert.Assert(t, !report.Changed())
}

func TestMerge_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		old := testutil.DrawTree(rt, "old", 25)
		stored := tree.New(old, nil)

		// give some folders a custom style
		styles := make(map[string][2]string)
		stored.Walk(func(n *tree.Node) *tree.Node {
			if n.IsFolder() && rapid.Bool().Draw(rt, "styled") {
				icon, color := "icon-"+n.ID, fmt.Sprintf("#%06X", len(styles))
				n.Icon, n.Color = icon, color
			}
			if n.IsFolder() {
				styles[n.ID] = [2]string{n.Icon, n.Color}
			}
			return nil
		})

		authoritative := testutil.Mutate(rt, old)
		reconcile.Merge(stored, authoritative, nil)

		if render(stored) != renderRaw(authoritative) {
			rt.Fatalf("stored tree diverges\nwant:\n%s\ngot:\n%s", renderRaw(authoritative), render(stored))
		}

		seen := make(map[string]bool)
		stored.Walk(func(n *tree.Node) *tree.Node {
			if seen[n.ID] {
				rt.Fatalf("duplicate id %s", n.ID)
			}
			seen[n.ID] = true
			if style, ok := styles[n.ID]; ok && (n.Icon != style[0] || n.Color != style[1]) {
				rt.Fatalf("%s style %s/%s, want %s/%s", n.ID, n.Icon, n.Color, style[0], style[1])
			}
			return nil
		})
	})
}

// render prints the authoritative fields of the tree depth-first.
func render(root *tree.Node) string {
	var b strings.Builder
	var visit func(n *tree.Node, depth int)
	visit = func(n *tree.Node, depth int) {
		fmt.Fprintf(&b, "%s%s %s %s %d %q %s\n", strings.Repeat("  ", depth), n.ID, n.Kind, n.Parent(), n.Index, n.Title, n.URL)
		for _, child := range n.Children {
			visit(child, depth+1)
		}
	}
	visit(root, 0)
	return b.String()
}

func renderRaw(root *model.Node) string {
	return render(tree.New(root, nil))
}
