package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldRepo = iota
	fieldToken
	fieldCount
)

// Form holds the repository URL and access token inputs.
type Form struct {
	inputs  [fieldCount]textinput.Model
	focused int
}

// NewForm creates the input form with the repository field focused.
func NewForm(repoURL, token string) *Form {
	repo := textinput.New()
	repo.Placeholder = "https://github.com/owner/repository"
	repo.Prompt = "Repository › "
	repo.CharLimit = 512
	repo.Width = 60
	repo.SetValue(repoURL)

	tok := textinput.New()
	tok.Placeholder = "ghp_..."
	tok.Prompt = "Token      › "
	tok.CharLimit = 256
	tok.Width = 60
	tok.EchoMode = textinput.EchoPassword
	tok.EchoCharacter = '•'
	tok.SetValue(token)

	f := &Form{inputs: [fieldCount]textinput.Model{repo, tok}}
	f.inputs[fieldRepo].Focus()
	return f
}

// Next moves focus to the next field.
func (f *Form) Next() {
	f.setFocus((f.focused + 1) % fieldCount)
}

// Prev moves focus to the previous field.
func (f *Form) Prev() {
	f.setFocus((f.focused + fieldCount - 1) % fieldCount)
}

func (f *Form) setFocus(i int) {
	f.inputs[f.focused].Blur()
	f.focused = i
	f.inputs[i].Focus()
}

// Focused reports the focused field.
func (f *Form) Focused() int {
	return f.focused
}

// Blur removes focus from every field.
func (f *Form) Blur() {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

// Focus restores focus to the last focused field.
func (f *Form) Focus() tea.Cmd {
	return f.inputs[f.focused].Focus()
}

// RepoURL returns the trimmed repository URL.
func (f *Form) RepoURL() string {
	return strings.TrimSpace(f.inputs[fieldRepo].Value())
}

// SetRepoURL replaces the repository URL.
func (f *Form) SetRepoURL(v string) {
	f.inputs[fieldRepo].SetValue(v)
	f.inputs[fieldRepo].CursorEnd()
}

// Token returns the trimmed access token.
func (f *Form) Token() string {
	return strings.TrimSpace(f.inputs[fieldToken].Value())
}

// Update forwards a message to the focused input.
func (f *Form) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return cmd
}

// View renders both inputs.
func (f *Form) View(width int) string {
	boxWidth := width - 4
	if boxWidth < 20 {
		boxWidth = 20
	}
	var b strings.Builder
	for i := range f.inputs {
		style := inputBoxStyle
		if f.inputs[i].Focused() {
			style = focusedBoxStyle
		}
		b.WriteString(style.Width(boxWidth).Render(f.inputs[i].View()))
		b.WriteString("\n")
	}
	return b.String()
}
