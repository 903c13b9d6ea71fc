package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const maxSuggestions = 5

// Suggestions completes the repository field from recently used URLs.
type Suggestions struct {
	items       []string
	filtered    []string
	selectedIdx int
	visible     bool
}

// NewSuggestions creates a suggestion list.
func NewSuggestions() *Suggestions {
	return &Suggestions{}
}

// SetItems replaces the known repository URLs, dropping duplicates.
func (s *Suggestions) SetItems(urls []string) {
	seen := make(map[string]bool, len(urls))
	s.items = s.items[:0]
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		s.items = append(s.items, u)
	}
}

// Update filters suggestions against the current input.
func (s *Suggestions) Update(input string) {
	query := strings.ToLower(strings.TrimSpace(input))
	s.filtered = s.filtered[:0]
	s.selectedIdx = 0
	if query == "" {
		s.visible = false
		return
	}
	for _, item := range s.items {
		if strings.EqualFold(item, query) {
			continue
		}
		if strings.Contains(strings.ToLower(item), query) {
			s.filtered = append(s.filtered, item)
			if len(s.filtered) == maxSuggestions {
				break
			}
		}
	}
	s.visible = len(s.filtered) > 0
}

// Hide closes the list.
func (s *Suggestions) Hide() {
	s.visible = false
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) > 0 {
		s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
	}
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) > 0 {
		s.selectedIdx = (s.selectedIdx - 1 + len(s.filtered)) % len(s.filtered)
	}
}

// IsVisible returns whether suggestions should be shown
func (s *Suggestions) IsVisible() bool {
	return s.visible
}

// Selected returns the highlighted suggestion.
func (s *Suggestions) Selected() (string, bool) {
	if !s.visible || len(s.filtered) == 0 {
		return "", false
	}
	return s.filtered[s.selectedIdx], true
}

// Render draws the dropdown.
func (s *Suggestions) Render(width int) string {
	if !s.visible {
		return ""
	}
	var lines []string
	for i, item := range s.filtered {
		if i == s.selectedIdx {
			lines = append(lines, selectedStyle.Render(" "+item+" "))
		} else {
			lines = append(lines, " "+item)
		}
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(mutedColor).
		MaxWidth(width).
		Render(strings.Join(lines, "\n"))
}
