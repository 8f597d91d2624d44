package picker

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/search"
	"github.com/nikbrunner/bmsync/internal/testutil"
	"github.com/nikbrunner/bmsync/internal/tree"
)

func bookmark(id, title, url string) *tree.Node {
	return &tree.Node{ID: id, Title: title, URL: url, Kind: model.KindBookmark}
}

func TestPicker_InitialState(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com")},
		{Node: bookmark("b2", "GitLab", "https://gitlab.com")},
	}

	p := New(results, "git")

	if p.cursor != 0 {
		t.Errorf("expected cursor at 0, got %d", p.cursor)
	}
	if len(p.results) != 2 {
		t.Errorf("expected 2 results, got %d", len(p.results))
	}
}

func TestPicker_NavigateDown(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com")},
		{Node: bookmark("b2", "GitLab", "https://gitlab.com")},
	}

	p := New(results, "git")
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}

	newModel, _ := p.Update(msg)
	p = newModel.(Picker)

	if p.cursor != 1 {
		t.Errorf("expected cursor at 1, got %d", p.cursor)
	}
}

func TestPicker_NavigateUp(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com")},
		{Node: bookmark("b2", "GitLab", "https://gitlab.com")},
	}

	p := New(results, "git")
	// Move down first
	p.cursor = 1

	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}
	newModel, _ := p.Update(msg)
	p = newModel.(Picker)

	if p.cursor != 0 {
		t.Errorf("expected cursor at 0, got %d", p.cursor)
	}
}

func TestPicker_BoundsCheck(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com")},
	}

	p := New(results, "git")

	// Try to go up from 0 (should stay at 0)
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}
	newModel, _ := p.Update(msg)
	p = newModel.(Picker)

	if p.cursor != 0 {
		t.Errorf("expected cursor at 0, got %d", p.cursor)
	}

	// Try to go down from last (should stay at last)
	msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}
	newModel, _ = p.Update(msg)
	p = newModel.(Picker)

	if p.cursor != 0 {
		t.Errorf("expected cursor at 0 (only 1 item), got %d", p.cursor)
	}
}

func TestPicker_SelectItem(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com")},
		{Node: bookmark("b2", "GitLab", "https://gitlab.com")},
	}

	p := New(results, "git")
	p.cursor = 1 // Select GitLab

	msg := tea.KeyMsg{Type: tea.KeyEnter}
	newModel, cmd := p.Update(msg)
	p = newModel.(Picker)

	if p.action != ActionOpen {
		t.Error("expected open action after Enter")
	}

	// Should return quit command
	if cmd == nil {
		t.Error("expected quit command after selection")
	}
}

func TestPicker_Cancel(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com")},
	}

	p := New(results, "git")

	msg := tea.KeyMsg{Type: tea.KeyEsc}
	newModel, cmd := p.Update(msg)
	p = newModel.(Picker)

	if !p.cancelled {
		t.Error("expected cancelled to be true after Esc")
	}
	if cmd == nil {
		t.Error("expected quit command after cancel")
	}
}

func TestPicker_Selected(t *testing.T) {
	bm := bookmark("b1", "GitHub", "https://github.com")
	results := []search.SearchResult{
		{Node: bm},
	}

	p := New(results, "git")
	p.action = ActionOpen

	got, action := p.Selected()
	if got != bm || action != ActionOpen {
		t.Errorf("expected selected bookmark to be returned")
	}
}

func TestPicker_Selected_Cancelled(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com")},
	}

	p := New(results, "git")
	p.cancelled = true

	got, _ := p.Selected()
	if got != nil {
		t.Error("expected nil when cancelled")
	}
}

func TestPicker_ArrowKeys(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com")},
		{Node: bookmark("b2", "GitLab", "https://gitlab.com")},
	}

	p := New(results, "git")

	// Test down arrow
	msg := tea.KeyMsg{Type: tea.KeyDown}
	newModel, _ := p.Update(msg)
	p = newModel.(Picker)
	if p.cursor != 1 {
		t.Errorf("expected cursor at 1 after down arrow, got %d", p.cursor)
	}

	// Test up arrow
	msg = tea.KeyMsg{Type: tea.KeyUp}
	newModel, _ = p.Update(msg)
	p = newModel.(Picker)
	if p.cursor != 0 {
		t.Errorf("expected cursor at 0 after up arrow, got %d", p.cursor)
	}
}

func TestPicker_Copy(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com")},
	}

	p := New(results, "git")
	newModel, cmd := p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	p = newModel.(Picker)

	got, action := p.Selected()
	if got == nil || action != ActionCopy {
		t.Errorf("expected copy action, got %v", action)
	}
	if cmd == nil {
		t.Error("expected quit command after copy")
	}
}

func TestPicker_View(t *testing.T) {
	results := []search.SearchResult{
		{Node: bookmark("b1", "GitHub", "https://github.com"), Path: "Bookmarks Menu / Development", MatchedIndexes: []int{0, 1, 2}},
	}

	view := New(results, "git").View()

	if !strings.Contains(view, "(1 results)") {
		t.Error("expected result count in header")
	}
	if !strings.Contains(view, "https://github.com") {
		t.Error("expected URL in view")
	}
	if !strings.Contains(view, "Bookmarks Menu / Development") {
		t.Error("expected folder path in view")
	}
}

func TestPicker_Refine(t *testing.T) {
	p := NewSearch(tree.New(testutil.Sample(), nil), "")
	if len(p.results) != 0 {
		t.Fatalf("expected no results for empty query, got %d", len(p.results))
	}

	keys := []tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune{'/'}}}
	for _, r := range "news" {
		keys = append(keys, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	keys = append(keys, tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyEnter})
	for _, msg := range keys {
		newModel, _ := p.Update(msg)
		p = newModel.(Picker)
	}

	if p.query != "news" {
		t.Errorf("expected query %q, got %q", "news", p.query)
	}
	got, action := p.Selected()
	if got == nil || got.ID != "news" || action != ActionOpen {
		t.Errorf("expected to open news, got %v %v", got, action)
	}
}

func TestPicker_RefineNeedsRoot(t *testing.T) {
	p := New([]search.SearchResult{{Node: bookmark("b1", "GitHub", "https://github.com")}}, "git")

	newModel, _ := p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	p = newModel.(Picker)

	if p.input.Focused() {
		t.Error("expected refine to stay off without a tree")
	}
}
