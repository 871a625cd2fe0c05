// Package ui provides the banner and help text for reportctl.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const banner = `
  ┏━┓┏━╸┏━┓┏━┓┏━┓╺┳╸┏━╸╺┳╸╻
  ┣┳┛┣╸ ┣━┛┃ ┃┣┳┛ ┃ ┃   ┃ ┃
  ╹┗╸┗━╸╹  ┗━┛╹┗╸ ╹ ┗━╸ ╹ ┗━╸`

// tagline is the product tagline.
const tagline = "Generate, follow and export dashboard reports"

// PrintBanner prints the banner with version info.
//
// Parameters:
//   - version: The CLI version string to display
func PrintBanner(version string) {
	if IsQuiet() {
		return
	}

	styledBanner := lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true).
		Render(banner)
	emit(styledBanner)
	emit("")

	taglineStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		PaddingLeft(2)
	emit(taglineStyle.Render(tagline))
	emit("")

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		PaddingLeft(2)
	emit(infoStyle.Render(fmt.Sprintf("Version: %s", version)))
	emit("")
}

// GetHelpText returns the long help of the root command.
func GetHelpText() string {
	title := lipgloss.NewStyle().Foreground(Indigo).Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	return fmt.Sprintf(`%s

%s
  %s   Create a report from a prompt
  %s        Follow a report until its results are ready
  %s       Show report metadata and status
  %s      Print the results of a completed report
  %s        Re-run generation of a report
  %s         Open the report in the browser

%s
  %s     Run a local backend for development
  %s      Start MCP server for AI integration
  %s  Install agent skills
  %s         Show or edit configuration`,
		dim.Render(tagline+"."),
		title.Render("Reports:"),
		title.Render("reportctl create <prompt>"),
		title.Render("reportctl watch <id>"),
		title.Render("reportctl status <id>"),
		title.Render("reportctl results <id>"),
		title.Render("reportctl retry <id>"),
		title.Render("reportctl open <id>"),
		title.Render("Tooling:"),
		title.Render("reportctl dev-server"),
		title.Render("reportctl mcp serve"),
		title.Render("reportctl skill install"),
		title.Render("reportctl config"),
	)
}
