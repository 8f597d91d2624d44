package tree

import "github.com/nikbrunner/bmsync/internal/model"

// Patch is a partial update of a Node. Only non-nil fields are applied.
type Patch struct {
	Title             *string
	URL               *string
	Index             *int
	ParentID          *string
	DateAdded         *int64
	DateGroupModified *int64
	Unmodifiable      *string
	Kind              *model.Kind

	// Extension-only fields.
	Icon  *string
	Color *string
}

// AuthoritativePatch returns a patch carrying every authoritative field of
// raw. It never touches Icon or Color.
func AuthoritativePatch(raw *model.Node) Patch {
	title := raw.Title
	url := raw.URL
	index := raw.Index
	dateAdded := raw.DateAdded
	dateGroupModified := raw.DateGroupModified
	unmodifiable := raw.Unmodifiable
	kind := raw.Kind
	p := Patch{
		Title:             &title,
		URL:               &url,
		Index:             &index,
		DateAdded:         &dateAdded,
		DateGroupModified: &dateGroupModified,
		Unmodifiable:      &unmodifiable,
		Kind:              &kind,
	}
	if raw.ParentID != nil {
		parentID := *raw.ParentID
		p.ParentID = &parentID
	}
	return p
}

// ChangePatch converts a change notification into a patch.
func ChangePatch(info model.ChangeInfo) Patch {
	return Patch{Title: info.Title, URL: info.URL}
}

// StylePatch sets a folder's icon and color.
func StylePatch(icon, color string) Patch {
	return Patch{Icon: &icon, Color: &color}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.URL == nil && p.Index == nil && p.ParentID == nil &&
		p.DateAdded == nil && p.DateGroupModified == nil && p.Unmodifiable == nil && p.Kind == nil &&
		p.Icon == nil && p.Color == nil
}

// AffectsStyle reports whether the patch changes how a folder is rendered
// in the browser chrome.
func (p Patch) AffectsStyle() bool {
	return p.Title != nil || p.Icon != nil || p.Color != nil
}

// ChangeInfo extracts the fields the bookmark service knows how to update.
func (p Patch) ChangeInfo() (model.ChangeInfo, bool) {
	info := model.ChangeInfo{Title: p.Title, URL: p.URL}
	return info, info.Title != nil || info.URL != nil
}

func (p Patch) apply(n *Node) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.URL != nil {
		n.URL = *p.URL
	}
	if p.Index != nil {
		n.Index = *p.Index
	}
	if p.ParentID != nil {
		parentID := *p.ParentID
		n.ParentID = &parentID
	}
	if p.DateAdded != nil {
		n.DateAdded = *p.DateAdded
	}
	if p.DateGroupModified != nil {
		n.DateGroupModified = *p.DateGroupModified
	}
	if p.Unmodifiable != nil {
		n.Unmodifiable = *p.Unmodifiable
	}
	if p.Kind != nil && *p.Kind != n.Kind {
		n.Kind = *p.Kind
		if n.IsFolder() && n.Children == nil {
			n.Children = []*Node{}
		}
	}
	if p.Icon != nil {
		n.Icon = *p.Icon
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
}
