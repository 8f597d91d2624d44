package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nikbrunner/bmsync/internal/search"
	"github.com/nikbrunner/bmsync/internal/tree"
)

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	matchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Underline(true)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true).
			MarginBottom(1)
)

// Action is what the user asked to do with the selection.
type Action int

const (
	ActionNone Action = iota
	ActionOpen
	ActionCopy
)

// Picker is a simple TUI for selecting from search results. A picker built
// with NewSearch can refine its query in place.
type Picker struct {
	results   []search.SearchResult
	query     string
	root      *tree.Node
	input     textinput.Model
	keys      KeyMap
	cursor    int
	action    Action
	cancelled bool
	width     int
	height    int
}

// New creates a new Picker with the given search results.
func New(results []search.SearchResult, query string) Picker {
	input := textinput.New()
	input.Prompt = "/"
	input.SetValue(query)
	return Picker{
		results: results,
		query:   query,
		input:   input,
		keys:    DefaultKeyMap(),
		cursor:  0,
		width:   80,
		height:  24,
	}
}

// NewSearch creates a Picker over the bookmarks of root, starting with the
// results for query.
func NewSearch(root *tree.Node, query string) Picker {
	p := New(search.FuzzySearchBookmarks(root, query), query)
	p.root = root
	return p
}

// Init implements tea.Model.
func (p Picker) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil

	case tea.KeyMsg:
		if p.input.Focused() {
			return p.refine(msg)
		}
		switch {
		case key.Matches(msg, p.keys.Quit):
			p.cancelled = true
			return p, tea.Quit
		case key.Matches(msg, p.keys.Open):
			p.action = ActionOpen
			return p, tea.Quit
		case key.Matches(msg, p.keys.Copy):
			p.action = ActionCopy
			return p, tea.Quit
		case key.Matches(msg, p.keys.Down):
			p.moveDown()
		case key.Matches(msg, p.keys.Up):
			p.moveUp()
		case key.Matches(msg, p.keys.Refine) && p.root != nil:
			return p, p.input.Focus()
		}
	}

	return p, nil
}

// refine feeds a key to the query input and searches again when the query
// changed. Enter and Esc leave the input.
func (p Picker) refine(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		p.input.Blur()
		return p, nil
	case tea.KeyCtrlC:
		p.cancelled = true
		return p, tea.Quit
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if q := p.input.Value(); q != p.query {
		p.query = q
		p.results = search.FuzzySearchBookmarks(p.root, q)
		p.cursor = 0
	}
	return p, cmd
}

func (p *Picker) moveDown() {
	if p.cursor < len(p.results)-1 {
		p.cursor++
	}
}

func (p *Picker) moveUp() {
	if p.cursor > 0 {
		p.cursor--
	}
}

// View implements tea.Model.
func (p Picker) View() string {
	var b strings.Builder

	// Header
	if p.input.Focused() {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d results)", p.input.View(), len(p.results))))
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("Search: %s (%d results)", p.query, len(p.results))))
	}
	b.WriteString("\n\n")

	for i, result := range p.results {
		cursor := "  "
		style := normalStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedStyle
		}

		title := highlight(result.Node.Title, result.MatchedIndexes, style)
		url := urlStyle.Render(result.Node.URL)

		b.WriteString(fmt.Sprintf("%s%s  %s\n", cursor, title, pathStyle.Render(result.Path)))
		b.WriteString(fmt.Sprintf("   %s\n", url))
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(p.keys.footer()))

	return b.String()
}

// highlight renders title with the fuzzy-matched characters emphasized.
func highlight(title string, matched []int, base lipgloss.Style) string {
	if len(matched) == 0 {
		return base.Render(title)
	}
	hits := make(map[int]bool, len(matched))
	for _, i := range matched {
		hits[i] = true
	}

	var b strings.Builder
	for i, r := range title {
		if hits[i] {
			b.WriteString(matchStyle.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}
	return b.String()
}

// Selected returns the chosen bookmark and what to do with it, or nil if
// the user cancelled.
func (p Picker) Selected() (*tree.Node, Action) {
	if p.cancelled || p.action == ActionNone {
		return nil, ActionNone
	}
	if p.cursor < len(p.results) {
		return p.results[p.cursor].Node, p.action
	}
	return nil, ActionNone
}

// Cancelled returns true if the user cancelled the selection.
func (p Picker) Cancelled() bool {
	return p.cancelled
}
