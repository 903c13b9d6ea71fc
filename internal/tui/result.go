package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/fentz26/dockgen/internal/models"
)

// ResultModel shows the generated Dockerfile and detected tech stack.
type ResultModel struct {
	viewport viewport.Model
	renderer *glamour.TermRenderer
	width    int
	result   *models.GenerationStatus
}

// NewResultModel creates an empty result view.
func NewResultModel() *ResultModel {
	m := &ResultModel{viewport: viewport.New(80, 20)}
	m.SetSize(80, 20)
	return m
}

// SetSize resizes the viewport and re-renders for the new width.
func (m *ResultModel) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	if width != m.width || m.renderer == nil {
		m.width = width
		m.renderer = newRenderer(width)
	}
	m.refresh()
}

// SetResult replaces the shown generation.
func (m *ResultModel) SetResult(r *models.GenerationStatus) {
	m.result = r
	m.refresh()
	m.viewport.GotoTop()
}

// Result returns the shown generation.
func (m *ResultModel) Result() *models.GenerationStatus {
	return m.result
}

func (m *ResultModel) refresh() {
	if m.result == nil || m.result.Dockerfile == "" {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(renderDockerfile(m.renderer, m.result.Dockerfile))
}

// View renders tech stack badges followed by the Dockerfile.
func (m *ResultModel) View() string {
	if m.result == nil {
		return ""
	}
	var b strings.Builder
	if len(m.result.TechStack) > 0 {
		b.WriteString(labelStyle.Render("Tech stack: "))
		for _, t := range m.result.TechStack {
			b.WriteString(badgeStyle.Render(t))
		}
		b.WriteString("\n")
	}
	if m.result.Error != "" {
		b.WriteString(errorStyle.Render("Error: "+m.result.Error) + "\n")
	}
	if m.result.Dockerfile != "" {
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100)))
	}
	return b.String()
}

// ScrollUp moves the Dockerfile view up one line.
func (m *ResultModel) ScrollUp() { m.viewport.LineUp(1) }

// ScrollDown moves the Dockerfile view down one line.
func (m *ResultModel) ScrollDown() { m.viewport.LineDown(1) }

func newRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(styles.DarkStyleConfig),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderDockerfile highlights the Dockerfile as a fenced code block, falling
// back to the raw text.
func renderDockerfile(r *glamour.TermRenderer, dockerfile string) string {
	if r == nil {
		return dockerfile
	}
	out, err := r.Render("```dockerfile\n" + strings.TrimRight(dockerfile, "\n") + "\n```\n")
	if err != nil {
		return dockerfile
	}
	return out
}
