package exporter

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikbrunner/bmsync/internal/favicon"
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// Icons resolves the cached favicon of an origin.
type Icons interface {
	Get(ctx context.Context, origin string) (favicon.Record, bool, error)
}

// DefaultExportPath returns the default export file path.
// Format: ~/Downloads/bookmarks-export-YYYY-MM-DD.html
func DefaultExportPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("bookmarks-export-%s.html", time.Now().Format("2006-01-02"))
	return filepath.Join(home, "Downloads", filename), nil
}

// ExportHTML renders the tree as Netscape bookmark HTML. Bookmarks whose
// origin has a cached favicon carry it inline as an ICON data URL; icons may
// be nil.
func ExportHTML(ctx context.Context, root *tree.Node, icons Icons) string {
	var b strings.Builder

	// Header
	b.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	b.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	b.WriteString("<TITLE>Bookmarks</TITLE>\n")
	b.WriteString("<H1>Bookmarks</H1>\n")
	b.WriteString("<DL><p>\n")

	w := &writer{b: &b, ctx: ctx, icons: icons}
	// The menu's entries are the top level of the file; every other root
	// folder becomes a flagged H3.
	if menu := root.Get(model.MenuID); menu != nil {
		w.items(menu.Children, 1)
	}
	for _, child := range root.Children {
		if child.ID == model.MenuID {
			continue
		}
		if child.IsFolder() && len(child.Children) == 0 && child.ID != model.ToolbarID {
			continue
		}
		w.item(child, 1)
	}

	// Footer
	b.WriteString("</DL><p>\n")

	return b.String()
}

type writer struct {
	b     *strings.Builder
	ctx   context.Context
	icons Icons
}

func (w *writer) items(nodes []*tree.Node, indent int) {
	for _, n := range nodes {
		w.item(n, indent)
	}
}

func (w *writer) item(n *tree.Node, indent int) {
	prefix := strings.Repeat("    ", indent)

	switch n.Kind {
	case model.KindFolder:
		fmt.Fprintf(w.b, "%s<DT><H3%s>%s</H3>\n", prefix, folderAttrs(n), html.EscapeString(n.Title))
		fmt.Fprintf(w.b, "%s<DL><p>\n", prefix)
		w.items(n.Children, indent+1)
		fmt.Fprintf(w.b, "%s</DL><p>\n", prefix)

	case model.KindSeparator:
		fmt.Fprintf(w.b, "%s<HR>\n", prefix)

	default:
		fmt.Fprintf(w.b,
			"%s<DT><A HREF=\"%s\" ADD_DATE=\"%d\"%s>%s</A>\n",
			prefix,
			html.EscapeString(n.URL),
			n.DateAdded/1000,
			w.iconAttr(n),
			html.EscapeString(n.Title),
		)
	}
}

func folderAttrs(n *tree.Node) string {
	var attrs strings.Builder
	fmt.Fprintf(&attrs, " ADD_DATE=\"%d\"", n.DateAdded/1000)
	if n.DateGroupModified != 0 {
		fmt.Fprintf(&attrs, " LAST_MODIFIED=\"%d\"", n.DateGroupModified/1000)
	}
	switch n.ID {
	case model.ToolbarID:
		attrs.WriteString(" PERSONAL_TOOLBAR_FOLDER=\"true\"")
	case model.UnfiledID:
		attrs.WriteString(" UNFILED_BOOKMARKS_FOLDER=\"true\"")
	}
	return attrs.String()
}

// iconAttr returns the ICON attribute for a bookmark, or "" when no favicon
// is cached for its origin.
func (w *writer) iconAttr(n *tree.Node) string {
	if w.icons == nil || n.Icon == "" {
		return ""
	}
	rec, ok, err := w.icons.Get(w.ctx, n.Icon)
	if err != nil || !ok {
		return ""
	}
	return fmt.Sprintf(" ICON=\"%s\"", rec.DataURL())
}
