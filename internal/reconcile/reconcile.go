package reconcile

import (
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// Report counts what a full reconciliation did.
type Report struct {
	Added   int
	Updated int
	Removed int
}

// Changed reports whether the pass modified the stored tree.
func (r Report) Changed() bool {
	return r.Added+r.Updated+r.Removed > 0
}

// Merge brings stored in line with the authoritative tree while keeping
// every icon and color it already holds.
//
// The authoritative tree is walked breadth-first so parents are placed
// before their children. Unknown nodes are built (which assigns extension
// defaults and schedules favicon refreshes on icons) and added; known nodes
// that differ get the authoritative fields and, when their parent changed,
// are moved first. Whatever the authoritative tree no longer has is removed
// afterwards, and every folder is finally ordered by index.
func Merge(stored *tree.Node, authoritative *model.Node, icons tree.IconScheduler) Report {
	var report Report

	authoritative.Walk(func(raw *model.Node) bool {
		current := stored.Get(raw.ID)
		if current == nil {
			if stored.Add(tree.New(raw.Shallow(), icons)) {
				report.Added++
			}
			return true
		}
		if model.Equal(current.Raw(), raw) {
			return true
		}
		if raw.ParentID != nil && current.Parent() != raw.Parent() {
			reparent(stored, current, raw.Parent())
		}
		current.Update(authoritativePatch(current, raw, icons), "")
		report.Updated++
		return true
	})

	report.Removed = len(stored.CleanRemoved(authoritative))
	stored.SortByIndex()
	return report
}

// reparent detaches n and appends it to the folder parentID. Sibling
// indexes are left alone; the final sort orders them.
func reparent(stored, n *tree.Node, parentID string) {
	parent := stored.Get(parentID)
	if parent == nil || !parent.IsFolder() || n.Get(parentID) != nil {
		return
	}
	stored.Remove(n.ID)
	n.ParentID = &parentID
	stored.Add(n)
}

// authoritativePatch carries raw's authoritative fields. A bookmark whose
// icon follows its url gets the new origin, with a refresh scheduled. A node
// that changed kind starts over with the extension defaults of its new kind.
func authoritativePatch(current *tree.Node, raw *model.Node, icons tree.IconScheduler) tree.Patch {
	p := tree.AuthoritativePatch(raw)
	if current.Kind != raw.Kind {
		fresh := tree.New(raw.Shallow(), icons)
		p.Icon, p.Color = &fresh.Icon, &fresh.Color
		return p
	}
	if origin, ok := originChange(current, raw.URL); ok {
		p.Icon = &origin
		if icons != nil {
			icons.Schedule(origin)
		}
	}
	return p
}

// originChange returns the origin of url when n is a bookmark whose icon
// should follow it: the icon is unset or still the origin of n's current
// url. Custom icons are kept.
func originChange(n *tree.Node, url string) (string, bool) {
	if n.Kind != model.KindBookmark {
		return "", false
	}
	origin, ok := model.Origin(url)
	if !ok || origin == n.Icon {
		return "", false
	}
	if n.Icon != "" {
		if previous, ok := model.Origin(n.URL); !ok || previous != n.Icon {
			return "", false
		}
	}
	return origin, true
}
