package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/dockgen/internal/models"
)

var listTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(primaryColor)

// historyItem implements list.DefaultItem for one past generation.
type historyItem struct {
	gen models.GenerationStatus
}

func (i historyItem) FilterValue() string { return i.gen.RepoURL }
func (i historyItem) Title() string       { return i.gen.RepoURL }
func (i historyItem) Description() string {
	parts := []string{formatStage(i.gen.Stage)}
	if len(i.gen.TechStack) > 0 {
		parts = append(parts, strings.Join(i.gen.TechStack, ", "))
	}
	if !i.gen.CreatedAt.IsZero() {
		parts = append(parts, i.gen.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return strings.Join(parts, " • ")
}

// HistoryModel lists past generations fetched from the server.
type HistoryModel struct {
	list    list.Model
	page    int
	total   int
	loading bool
}

// NewHistoryModel creates an empty history list.
func NewHistoryModel() *HistoryModel {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Recent generations"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = listTitleStyle
	return &HistoryModel{list: l, page: 1}
}

// SetSize resizes the list.
func (m *HistoryModel) SetSize(width, height int) {
	m.list.SetSize(width, height)
}

// SetPage replaces the listed generations.
func (m *HistoryModel) SetPage(p *models.HistoryPage) {
	m.loading = false
	items := make([]list.Item, len(p.Generations))
	for i, g := range p.Generations {
		items[i] = historyItem{gen: g}
	}
	m.list.SetItems(items)
	m.page = p.Page
	m.total = p.Total
	m.list.Title = fmt.Sprintf("Recent generations (page %d, %d total)", p.Page, p.Total)
}

// Selected returns the highlighted generation.
func (m *HistoryModel) Selected() (*models.GenerationStatus, bool) {
	item, ok := m.list.SelectedItem().(historyItem)
	if !ok {
		return nil, false
	}
	g := item.gen
	return &g, true
}

// Filtering reports whether the list is capturing keys for its filter.
func (m *HistoryModel) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// Update handles navigation keys.
func (m *HistoryModel) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

// View renders the list.
func (m *HistoryModel) View() string {
	if m.loading {
		return "\n  Loading history...\n"
	}
	return m.list.View()
}
