// Package tui is the PawTrack terminal interface.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pawtrack/pawtrack/pets"
)

// Color palette for consistent theming
var (
	ColorPrimary    = lipgloss.Color("#E07A5F") // Terracotta
	ColorSecondary  = lipgloss.Color("#6C757D") // Gray
	ColorSuccess    = lipgloss.Color("#28A745") // Green
	ColorWarning    = lipgloss.Color("#FFC107") // Yellow
	ColorError      = lipgloss.Color("#DC3545") // Red
	ColorInfo       = lipgloss.Color("#17A2B8") // Blue
	ColorMuted      = lipgloss.Color("#6C757D")
	ColorForeground = lipgloss.Color("#F4F1DE")
)

// Status indicator symbols
const (
	SymbolSuccess    = "✓"
	SymbolError      = "✗"
	SymbolInProgress = "⟳"
	SymbolPending    = "○"
	SymbolBullet     = "•"
	SymbolPaw        = "🐾"
)

// Styles provides consistent styling across the TUI
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	SectionHead lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style

	// Forms
	Label          lipgloss.Style
	FocusedLabel   lipgloss.Style
	Button         lipgloss.Style
	ButtonFocused  lipgloss.Style
	ButtonDisabled lipgloss.Style

	// Modal notifications
	Modal      lipgloss.Style
	ModalError lipgloss.Style

	TableHeader lipgloss.Style
	TableRow    lipgloss.Style
	Selected    lipgloss.Style

	Help     lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
}

// DefaultStyles returns the default style configuration
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorForeground),

		SectionHead: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorInfo).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(ColorSecondary).
			MarginBottom(1),

		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Error:   lipgloss.NewStyle().Foreground(ColorError),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Info:    lipgloss.NewStyle().Foreground(ColorInfo),
		Muted:   lipgloss.NewStyle().Foreground(ColorMuted),

		Label: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Width(18),

		FocusedLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Width(18),

		Button: lipgloss.NewStyle().
			Foreground(ColorForeground),

		ButtonFocused: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		ButtonDisabled: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Faint(true),

		Modal: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ColorInfo).
			Padding(1, 3),

		ModalError: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ColorError).
			Padding(1, 3),

		TableHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		TableRow: lipgloss.NewStyle().
			Foreground(ColorForeground),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		Help: lipgloss.NewStyle().
			Foreground(ColorMuted),

		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorInfo),

		HelpDesc: lipgloss.NewStyle().
			Foreground(ColorMuted),
	}
}

// PlainStyles returns styles without colors, for --no-color output.
func PlainStyles() *Styles {
	plain := lipgloss.NewStyle()
	return &Styles{
		Title: plain, Subtitle: plain, SectionHead: plain,
		Success: plain, Error: plain, Warning: plain, Info: plain, Muted: plain,
		Label: plain.Width(18), FocusedLabel: plain.Width(18),
		Button: plain, ButtonFocused: plain, ButtonDisabled: plain,
		Modal: plain, ModalError: plain,
		TableHeader: plain, TableRow: plain, Selected: plain,
		Help: plain, HelpKey: plain, HelpDesc: plain,
	}
}

// StatusIcon returns a styled icon for a pet status.
func (s *Styles) StatusIcon(status pets.Status) string {
	switch status {
	case pets.StatusAvailable:
		return s.Success.Render(SymbolSuccess)
	case pets.StatusAdopted:
		return s.Info.Render(SymbolBullet)
	case pets.StatusInFoster:
		return s.Warning.Render(SymbolInProgress)
	default:
		return s.Muted.Render(SymbolPending)
	}
}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats duration into a human-readable string
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
