// Package ui provides terminal UI components using Charm libraries.
//
// This package contains the styling and rendering helpers shared by the
// reportctl commands and the interactive report view.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	// Primary brand color
	Indigo = lipgloss.Color("#6366F1")

	// Secondary colors
	Teal    = lipgloss.Color("#14B8A6")
	Red     = lipgloss.Color("#EF4444")
	Amber   = lipgloss.Color("#F59E0B")
	Green   = lipgloss.Color("#22C55E")
	Gray    = lipgloss.Color("#6B7280")
	DimGray = lipgloss.Color("#9CA3AF")
)

// Text styles.
var (
	// TitleStyle for main headings
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Indigo)

	// SubtitleStyle for secondary headings
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// SuccessStyle for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// WarningStyle for warning messages
	WarningStyle = lipgloss.NewStyle().
			Foreground(Amber)

	// InfoStyle for informational messages
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	// DimStyle for less important text
	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// LinkStyle for URLs
	LinkStyle = lipgloss.NewStyle().
			Foreground(Indigo).
			Underline(true)

	// CodeStyle for inline code and SQL
	CodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F3F4F6")).
			Background(lipgloss.Color("#374151")).
			Padding(0, 1)
)

// Box styles.
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Indigo).
			Padding(0, 1)

	BoxTitleStyle = lipgloss.NewStyle().
			Foreground(Indigo).
			Bold(true)

	// ErrorBoxStyle frames a failed report.
	ErrorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Red).
			Padding(0, 1)
)

// Table styles.
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(DimGray).
				Bold(true)

	TableCellStyle = lipgloss.NewStyle()
)

// Report status styles.
var (
	StatusPendingStyle = lipgloss.NewStyle().
				Foreground(Amber)

	StatusInProgressStyle = lipgloss.NewStyle().
				Foreground(Teal)

	StatusCompleteStyle = lipgloss.NewStyle().
				Foreground(Green)

	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(Red)
)
