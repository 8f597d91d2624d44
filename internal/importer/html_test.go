package importer_test

import (
	"strings"
	"testing"

	"github.com/nikbrunner/bmsync/internal/importer"
	"github.com/nikbrunner/bmsync/internal/model"
)

func titles(nodes []*model.Node) []string {
	result := make([]string, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, n.Title)
	}
	return result
}

func TestParseHTML_SingleBookmark(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
    <DT><A HREF="https://example.com" ADD_DATE="1234567890">Example Site</A>
</DL><p>`

	root, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if root.ID != model.RootID {
		t.Errorf("expected root id %q, got %q", model.RootID, root.ID)
	}
	menu := model.Find(root, model.MenuID)
	if menu == nil {
		t.Fatal("expected bookmarks menu")
	}
	if len(menu.Children) != 1 {
		t.Fatalf("expected 1 bookmark, got %d", len(menu.Children))
	}

	b := menu.Children[0]
	if b.Title != "Example Site" {
		t.Errorf("expected title 'Example Site', got %q", b.Title)
	}
	if b.URL != "https://example.com" {
		t.Errorf("expected URL 'https://example.com', got %q", b.URL)
	}
	if b.Parent() != model.MenuID || b.Index != 0 {
		t.Errorf("expected first child of menu, got parent %q index %d", b.Parent(), b.Index)
	}
	if b.Kind != model.KindBookmark || b.Children != nil {
		t.Errorf("expected a bookmark without children, got %+v", b)
	}
	if b.ID == "" {
		t.Error("expected non-empty ID")
	}
}

func TestParseHTML_NestedFolders(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3 ADD_DATE="1234567890">Development</H3>
    <DL><p>
        <DT><H3 ADD_DATE="1234567890">React</H3>
        <DL><p>
            <DT><A HREF="https://react.dev" ADD_DATE="1234567890">React Docs</A>
        </DL><p>
        <DT><A HREF="https://github.com" ADD_DATE="1234567890">GitHub</A>
    </DL><p>
    <HR>
    <DT><A HREF="https://google.com" ADD_DATE="1234567890">Google</A>
</DL><p>`

	root, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	menu := model.Find(root, model.MenuID)
	got := titles(menu.Children)
	want := []string{"Development", "", "Google"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected menu children %q, got %q", want, got)
	}
	if menu.Children[1].Kind != model.KindSeparator {
		t.Errorf("expected separator, got %q", menu.Children[1].Kind)
	}

	dev := menu.Children[0]
	if !dev.IsFolder() || len(dev.Children) != 2 {
		t.Fatalf("expected Development with 2 children, got %+v", dev)
	}
	react := dev.Children[0]
	if react.Title != "React" || react.Parent() != dev.ID {
		t.Error("React should be child of Development")
	}
	if len(react.Children) != 1 || react.Children[0].Title != "React Docs" {
		t.Error("React Docs should be in React folder")
	}
	if github := dev.Children[1]; github.Title != "GitHub" || github.Index != 1 {
		t.Errorf("GitHub should be second in Development, got %q at %d", github.Title, github.Index)
	}
}

func TestParseHTML_SpecialFolders(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3 PERSONAL_TOOLBAR_FOLDER="true">Bookmarks Toolbar</H3>
    <DL><p>
        <DT><A HREF="https://news.ycombinator.com">HN</A>
    </DL><p>
    <DT><H3 UNFILED_BOOKMARKS_FOLDER="true">Other Bookmarks</H3>
    <DL><p>
    </DL><p>
</DL><p>`

	root, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	toolbar := model.Find(root, model.ToolbarID)
	if toolbar == nil || toolbar.Parent() != model.RootID {
		t.Fatal("expected toolbar under root")
	}
	if len(toolbar.Children) != 1 || toolbar.Children[0].Title != "HN" {
		t.Errorf("expected HN in toolbar, got %q", titles(toolbar.Children))
	}
	if unfiled := model.Find(root, model.UnfiledID); unfiled == nil || unfiled.Title != "Other Bookmarks" {
		t.Error("expected unfiled folder")
	}
	if menu := model.Find(root, model.MenuID); len(menu.Children) != 0 {
		t.Errorf("expected empty menu, got %q", titles(menu.Children))
	}
}

func TestParseHTML_EmptyFile(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
</DL><p>`

	root, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(root.Children) != 1 {
		t.Errorf("expected only the menu under root, got %d children", len(root.Children))
	}
	if menu := model.Find(root, model.MenuID); len(menu.Children) != 0 {
		t.Errorf("expected empty menu, got %d children", len(menu.Children))
	}
}

func TestParseHTML_Timestamps(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3 ADD_DATE="1234567000" LAST_MODIFIED="1234567999">Folder</H3>
    <DL><p>
        <DT><A HREF="https://example.com" ADD_DATE="1234567890">Test</A>
    </DL><p>
</DL><p>`

	root, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	folder := model.Find(root, model.MenuID).Children[0]
	if folder.DateAdded != 1234567000000 || folder.DateGroupModified != 1234567999000 {
		t.Errorf("unexpected folder dates %d / %d", folder.DateAdded, folder.DateGroupModified)
	}
	if b := folder.Children[0]; b.DateAdded != 1234567890000 {
		t.Errorf("expected ADD_DATE in milliseconds, got %d", b.DateAdded)
	}
}

func TestParseHTML_MissingHref(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><A ADD_DATE="1234567890">No URL</A>
    <DT><A HREF="https://valid.com" ADD_DATE="1234567890">Valid</A>
</DL><p>`

	root, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	menu := model.Find(root, model.MenuID)
	if len(menu.Children) != 1 {
		t.Fatalf("expected 1 bookmark (skip missing href), got %d", len(menu.Children))
	}
	if menu.Children[0].Title != "Valid" {
		t.Errorf("expected 'Valid' bookmark, got %q", menu.Children[0].Title)
	}
}

func TestParseHTML_StableIDs(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><A HREF="https://example.com">Same</A>
    <DT><A HREF="https://example.com">Same</A>
    <DT><H3>Folder</H3>
    <DL><p>
        <DT><A HREF="https://example.com">Same</A>
    </DL><p>
</DL><p>`

	first, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := importer.ParseHTML(strings.NewReader(html))

	firstIDs := map[string]bool{}
	first.Walk(func(n *model.Node) bool {
		if firstIDs[n.ID] {
			t.Errorf("duplicate id %s", n.ID)
		}
		firstIDs[n.ID] = true
		return true
	})
	second.Walk(func(n *model.Node) bool {
		if !firstIDs[n.ID] {
			t.Errorf("id %s changed between parses", n.ID)
		}
		return true
	})

	// a renamed bookmark keeps its id
	renamed, _ := importer.ParseHTML(strings.NewReader(strings.Replace(html, ">Same</A>", ">Renamed</A>", 1)))
	menu := model.Find(renamed, model.MenuID)
	if menu.Children[0].Title != "Renamed" || !firstIDs[menu.Children[0].ID] {
		t.Error("expected renamed bookmark to keep its id")
	}
}
