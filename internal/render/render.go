// Package render prints the extended tree for the terminal, tinting each
// folder with its stored color.
package render

import (
	"github.com/charmbracelet/lipgloss"
	ltree "github.com/charmbracelet/lipgloss/tree"

	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/tree"
)

var (
	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	enumeratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginRight(1)
)

// Options controls what is printed.
type Options struct {
	URLs bool // print bookmark URLs next to titles
	IDs  bool // print node ids
}

// Tree renders root and its descendants.
func Tree(root *tree.Node, opts Options) string {
	return build(root, opts).String()
}

func build(n *tree.Node, opts Options) *ltree.Tree {
	t := ltree.Root(label(n, opts)).
		Enumerator(ltree.RoundedEnumerator).
		EnumeratorStyle(enumeratorStyle)

	for _, child := range n.Children {
		if child.IsFolder() {
			t.Child(build(child, opts))
			continue
		}
		t.Child(label(child, opts))
	}
	return t
}

func label(n *tree.Node, opts Options) string {
	var text string
	switch n.Kind {
	case model.KindFolder:
		style := lipgloss.NewStyle().Bold(true)
		if n.Color != "" {
			style = style.Foreground(lipgloss.Color(n.Color))
		}
		title := n.Title
		if title == "" && n.ID == model.RootID {
			title = "/"
		}
		text = style.Render(title)
		if n.Icon != "" {
			text += " " + separatorStyle.Render("["+n.Icon+"]")
		}
	case model.KindSeparator:
		text = separatorStyle.Render("────────")
	default:
		text = n.Title
		if opts.URLs && n.URL != "" {
			text += " " + urlStyle.Render(n.URL)
		}
	}
	if opts.IDs {
		text += " " + separatorStyle.Render("("+n.ID+")")
	}
	return text
}
