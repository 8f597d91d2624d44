package bookmarks

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nikbrunner/bmsync/internal/importer"
	"github.com/nikbrunner/bmsync/internal/model"
)

// Firefox backup type codes.
const (
	typeBookmark  = 1
	typeFolder    = 2
	typeSeparator = 3
)

// tagsID is Firefox's tag store; tags are not bookmarks.
const tagsID = "tags________"

// placesEntry is one entry of a Firefox bookmarks backup.
type placesEntry struct {
	GUID         string         `json:"guid"`
	Title        string         `json:"title"`
	Index        int            `json:"index"`
	DateAdded    int64          `json:"dateAdded"`    // µs
	LastModified int64          `json:"lastModified"` // µs
	TypeCode     int            `json:"typeCode"`
	URI          string         `json:"uri"`
	Root         string         `json:"root"`
	Children     []*placesEntry `json:"children"`
}

// ParsePlaces reads a Firefox bookmarks backup (bookmarks-*.json).
func ParsePlaces(r io.Reader) (*model.Node, error) {
	var entry placesEntry
	if err := json.NewDecoder(r).Decode(&entry); err != nil {
		return nil, fmt.Errorf("bookmarks: parse places: %w", err)
	}
	if entry.GUID == "" || entry.TypeCode != typeFolder {
		return nil, fmt.Errorf("bookmarks: parse places: root is not a folder")
	}
	return entry.node(nil), nil
}

func (e *placesEntry) node(parentID *string) *model.Node {
	n := &model.Node{
		ID:        e.GUID,
		Title:     e.Title,
		Index:     e.Index,
		ParentID:  parentID,
		DateAdded: e.DateAdded / 1000,
	}
	switch e.TypeCode {
	case typeFolder:
		n.Kind = model.KindFolder
		n.DateGroupModified = e.LastModified / 1000
		n.Children = make([]*model.Node, 0, len(e.Children))
		for _, child := range e.Children {
			if child.GUID == tagsID {
				continue
			}
			n.Children = append(n.Children, child.node(model.StringPtr(n.ID)))
		}
		// positions without the tag store
		renumber(n)
	case typeSeparator:
		n.Kind = model.KindSeparator
	default:
		n.Kind = model.KindBookmark
		n.URL = e.URI
	}
	if parentID == nil {
		n.Index = 0
	}
	return n
}

// LoadFile reads an authoritative tree from path: a Netscape HTML export
// when the extension is .html or .htm, a Firefox JSON backup otherwise.
func LoadFile(path string) (*model.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bookmarks: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return importer.ParseHTML(bytes.NewReader(data))
	default:
		return ParsePlaces(bytes.NewReader(data))
	}
}
