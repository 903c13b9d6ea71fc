package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/dockgen/internal/models"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	focusedBoxStyle = inputBoxStyle.
			BorderForeground(primaryColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	badgeStyle = lipgloss.NewStyle().
			Background(secondaryColor).
			Foreground(fgColor).
			Padding(0, 1).
			MarginRight(1)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	messageStyle = lipgloss.NewStyle().Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	stagePending  = lipgloss.NewStyle().Foreground(warningColor)
	stageBuilding = lipgloss.NewStyle().Foreground(cyanColor)
	stageSuccess  = lipgloss.NewStyle().Foreground(successColor)
	stageError    = lipgloss.NewStyle().Foreground(errorColor)
)

func formatStage(stage models.BuildStatus) string {
	switch stage {
	case models.BuildStatusPending:
		return stagePending.Render("● pending")
	case models.BuildStatusBuilding:
		return stageBuilding.Render("● building")
	case models.BuildStatusSuccess:
		return stageSuccess.Render("● success")
	case models.BuildStatusError:
		return stageError.Render("● error")
	case "":
		return labelStyle.Render("○ waiting")
	default:
		return string(stage)
	}
}
