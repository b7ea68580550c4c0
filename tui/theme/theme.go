// Package theme holds the palette and shared styles of the terminal views.
package theme

import "github.com/charmbracelet/lipgloss"

// Colors is a terminal palette. Each entry adapts to light and dark
// backgrounds.
type Colors struct {
	Green     lipgloss.TerminalColor
	Yellow    lipgloss.TerminalColor
	Red       lipgloss.TerminalColor
	Orange    lipgloss.TerminalColor
	Cyan      lipgloss.TerminalColor
	Blue      lipgloss.TerminalColor
	LightText lipgloss.TerminalColor
	MutedText lipgloss.TerminalColor
	Border    lipgloss.TerminalColor
}

// Kanagawa Dragon (dark) and Kanagawa Wave (light).
var DefaultColors = Colors{
	Green:     lipgloss.AdaptiveColor{Light: "#4E7C5A", Dark: "#98BB6C"},
	Yellow:    lipgloss.AdaptiveColor{Light: "#A68A64", Dark: "#FF9E3B"},
	Red:       lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"},
	Orange:    lipgloss.AdaptiveColor{Light: "#CC6B4E", Dark: "#FFA066"},
	Cyan:      lipgloss.AdaptiveColor{Light: "#5B8BBE", Dark: "#7E9CD8"},
	Blue:      lipgloss.AdaptiveColor{Light: "#4F7CAC", Dark: "#7FB4CA"},
	LightText: lipgloss.AdaptiveColor{Light: "#2B2F42", Dark: "#DCD7BA"},
	MutedText: lipgloss.AdaptiveColor{Light: "#6C7086", Dark: "#727169"},
	Border:    lipgloss.AdaptiveColor{Light: "#B5BDC5", Dark: "#363646"},
}

// Theme bundles the styles used across views.
type Theme struct {
	Colors  Colors
	Header  lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

// New builds a Theme from a palette.
func New(c Colors) *Theme {
	return &Theme{
		Colors:  c,
		Header:  lipgloss.NewStyle().Bold(true).Foreground(c.Orange),
		Label:   lipgloss.NewStyle().Foreground(c.Cyan).Width(12),
		Value:   lipgloss.NewStyle().Foreground(c.LightText),
		Muted:   lipgloss.NewStyle().Foreground(c.MutedText),
		Success: lipgloss.NewStyle().Foreground(c.Green),
		Error:   lipgloss.NewStyle().Foreground(c.Red),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c.Border).
			Padding(0, 1),
	}
}

// DefaultTheme is the shared default.
var DefaultTheme = New(DefaultColors)
