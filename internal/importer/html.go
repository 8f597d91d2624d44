package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/nikbrunner/bmsync/internal/model"
)

// ParseHTML parses a Netscape bookmark export into an authoritative tree.
//
// Top-level entries land in the bookmarks menu. Folders flagged
// PERSONAL_TOOLBAR_FOLDER or UNFILED_BOOKMARKS_FOLDER become the toolbar and
// unfiled roots. Ids are derived from each entry's position and content so
// that parsing the same file twice yields the same ids.
func ParseHTML(r io.Reader) (*model.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("importer: parse html: %w", err)
	}

	root := folder(model.RootID, "", nil)
	menu := folder(model.MenuID, "Bookmarks Menu", root)
	p := &parser{
		root: root,
		seen: make(map[string]int),
	}

	// stack of open folders, menu at the bottom
	stack := []*model.Node{menu}
	var pendingFolder *model.Node // folder waiting to be pushed on next DL

	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			parent := stack[len(stack)-1]

			switch strings.ToLower(n.Data) {
			case "h3":
				name := getTextContent(n)
				f := p.folderFor(n, name, parent)
				pendingFolder = f
				return // Don't recurse into H3

			case "a":
				href := getAttr(n, "href")
				if href == "" {
					// Skip bookmarks without URL
					return
				}
				title := getTextContent(n)
				if title == "" {
					title = href
				}
				b := &model.Node{
					ID:        p.id(parent, model.KindBookmark, href),
					Title:     title,
					Kind:      model.KindBookmark,
					URL:       href,
					DateAdded: unixMillis(getAttr(n, "add_date")),
				}
				attach(parent, b)
				return // Don't recurse into A

			case "hr":
				s := &model.Node{
					ID:   p.id(parent, model.KindSeparator, ""),
					Kind: model.KindSeparator,
				}
				attach(parent, s)
				return

			case "dl":
				// Definition list - marks folder contents
				pushedFolder := false
				if pendingFolder != nil {
					stack = append(stack, pendingFolder)
					pendingFolder = nil
					pushedFolder = true
				}

				for c := n.FirstChild; c != nil; c = c.NextSibling {
					parse(c)
				}

				if pushedFolder {
					stack = stack[:len(stack)-1]
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)
	return root, nil
}

type parser struct {
	root *model.Node
	seen map[string]int
}

// folderFor creates the folder described by an H3 element.
func (p *parser) folderFor(n *html.Node, name string, parent *model.Node) *model.Node {
	var f *model.Node
	switch {
	case strings.EqualFold(getAttr(n, "personal_toolbar_folder"), "true") && model.Find(p.root, model.ToolbarID) == nil:
		f = folder(model.ToolbarID, name, p.root)
	case strings.EqualFold(getAttr(n, "unfiled_bookmarks_folder"), "true") && model.Find(p.root, model.UnfiledID) == nil:
		f = folder(model.UnfiledID, name, p.root)
	default:
		f = folder(p.id(parent, model.KindFolder, name), name, parent)
	}
	f.DateAdded = unixMillis(getAttr(n, "add_date"))
	f.DateGroupModified = unixMillis(getAttr(n, "last_modified"))
	return f
}

// id derives a stable id from the parent, the entry's identity within it
// (url for bookmarks, title for folders) and how many identical entries
// came before it.
func (p *parser) id(parent *model.Node, kind model.Kind, identity string) string {
	key := parent.ID + "\x00" + string(kind) + "\x00" + identity
	occurrence := p.seen[key]
	p.seen[key]++
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key+"\x00"+strconv.Itoa(occurrence))).String()
}

func folder(id, title string, parent *model.Node) *model.Node {
	f := &model.Node{
		ID:       id,
		Title:    title,
		Kind:     model.KindFolder,
		Children: []*model.Node{},
	}
	if parent != nil {
		attach(parent, f)
	}
	return f
}

func attach(parent, child *model.Node) {
	child.ParentID = model.StringPtr(parent.ID)
	child.Index = len(parent.Children)
	parent.Children = append(parent.Children, child)
}

// unixMillis converts a seconds timestamp attribute to milliseconds.
func unixMillis(attr string) int64 {
	if attr == "" {
		return 0
	}
	ts, err := strconv.ParseInt(attr, 10, 64)
	if err != nil {
		return 0
	}
	return ts * 1000
}

// getTextContent returns the text content of a node.
func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}
