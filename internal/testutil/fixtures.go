// Package testutil provides tree fixtures, generators and recording fakes
// shared by the package tests.
package testutil

import "github.com/nikbrunner/bmsync/internal/model"

// Root returns an authoritative root folder holding children. Parent ids and
// indexes of the children are filled in.
func Root(children ...*model.Node) *model.Node {
	return Folder(model.RootID, "", children...)
}

// Folder returns an authoritative folder holding children. Parent ids and
// indexes of the children are filled in.
func Folder(id, title string, children ...*model.Node) *model.Node {
	f := &model.Node{ID: id, Title: title, Kind: model.KindFolder, Children: []*model.Node{}}
	for i, child := range children {
		child.ParentID = model.StringPtr(id)
		child.Index = i
		f.Children = append(f.Children, child)
	}
	return f
}

// Bookmark returns an authoritative bookmark.
func Bookmark(id, title, url string) *model.Node {
	return &model.Node{ID: id, Title: title, URL: url, Kind: model.KindBookmark}
}

// Separator returns an authoritative separator.
func Separator(id string) *model.Node {
	return &model.Node{ID: id, Kind: model.KindSeparator}
}

// Sample returns a small browser-like tree:
//
//	root________
//	├── menu________ "Bookmarks Menu"
//	│   ├── dev "Development"
//	│   │   ├── go "Go" https://go.dev/doc
//	│   │   └── gh "GitHub" https://github.com/golang/go
//	│   └── sep
//	└── toolbar_____ "Bookmarks Toolbar"
//	    └── news "Hacker News" https://news.ycombinator.com
func Sample() *model.Node {
	return Root(
		Folder(model.MenuID, "Bookmarks Menu",
			Folder("dev", "Development",
				Bookmark("go", "Go", "https://go.dev/doc"),
				Bookmark("gh", "GitHub", "https://github.com/golang/go"),
			),
			Separator("sep"),
		),
		Folder(model.ToolbarID, "Bookmarks Toolbar",
			Bookmark("news", "Hacker News", "https://news.ycombinator.com"),
		),
	)
}
