package tui

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette of the editor. Colors are ANSI 256 codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	Invalid lipgloss.Color
	Warning lipgloss.Color
	Dirty   lipgloss.Color
	Added   lipgloss.Color
	Removed lipgloss.Color
}

var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	Invalid: lipgloss.Color("196"),
	Warning: lipgloss.Color("220"),
	Dirty:   lipgloss.Color("208"),
	Added:   lipgloss.Color("114"),
	Removed: lipgloss.Color("203"),
}

type styles struct {
	normal   lipgloss.Style
	faint    lipgloss.Style
	selected lipgloss.Style
	header   lipgloss.Style
	label    lipgloss.Style
	focused  lipgloss.Style
	invalid  lipgloss.Style
	warning  lipgloss.Style
	dirty    lipgloss.Style
	added    lipgloss.Style
	removed  lipgloss.Style
	help     lipgloss.Style
	pane     lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		normal:   lipgloss.NewStyle().Foreground(t.NormalText),
		faint:    lipgloss.NewStyle().Foreground(t.FaintText),
		selected: lipgloss.NewStyle().Background(t.SelectedBackground).Foreground(t.SelectedForeground).Bold(true),
		header:   lipgloss.NewStyle().Foreground(t.HeaderForeground).Bold(true),
		label:    lipgloss.NewStyle().Foreground(t.FaintText).Width(14),
		focused:  lipgloss.NewStyle().Foreground(t.SelectedForeground).Bold(true).Underline(true),
		invalid:  lipgloss.NewStyle().Foreground(t.Invalid),
		warning:  lipgloss.NewStyle().Foreground(t.Warning),
		dirty:    lipgloss.NewStyle().Foreground(t.Dirty).Bold(true),
		added:    lipgloss.NewStyle().Foreground(t.Added),
		removed:  lipgloss.NewStyle().Foreground(t.Removed),
		help:     lipgloss.NewStyle().Foreground(t.HelpText),
		pane:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.BorderColor).Padding(0, 1),
	}
}
