package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	colGap              = "  "
	defaultTermWidth    = 120
	minColumnWidth      = 4
	defaultMaxCellWidth = 48
)

// Table represents a table with dynamic column widths for formatted output.
type Table struct {
	// Headers contains the column header names.
	Headers []string

	// Rows contains all data rows.
	Rows [][]string

	// MaxWidths specifies maximum width per column index (truncates with ellipsis).
	MaxWidths map[int]int

	// Width is the total width to fit into. Zero uses the terminal width.
	Width int
}

// NewTable creates a new table with the specified headers.
//
// Parameters:
//   - headers: Column header names
//
// Returns:
//   - *Table: A new table instance
func NewTable(headers ...string) *Table {
	return &Table{
		Headers:   headers,
		Rows:      make([][]string, 0),
		MaxWidths: make(map[int]int),
	}
}

// AddRow adds a data row to the table.
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// SetMaxWidth sets the maximum width for a column.
func (t *Table) SetMaxWidth(col, width int) {
	t.MaxWidths[col] = width
}

// TerminalWidth returns the width of stdout, or a default when stdout is
// not a terminal.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultTermWidth
	}
	return w
}

// columnWidths computes each column's width, then shrinks the widest
// columns until the row fits into total.
func (t *Table) columnWidths(total int) []int {
	widths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		widths[i] = lipgloss.Width(header)
	}
	for _, row := range t.Rows {
		for i, val := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(flattenCell(val)))
			}
		}
	}
	for i := range widths {
		limit := defaultMaxCellWidth
		if m, ok := t.MaxWidths[i]; ok {
			limit = m
		}
		widths[i] = min(widths[i], limit)
	}

	budget := total - len(colGap)*(len(widths)-1)
	for sum(widths) > budget {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= minColumnWidth {
			break
		}
		widths[widest]--
	}
	return widths
}

func sum(values []int) int {
	n := 0
	for _, v := range values {
		n += v
	}
	return n
}

// truncateWithEllipsis truncates a string to the specified display width.
func truncateWithEllipsis(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 3 {
		return string(runes[:min(width, len(runes))])
	}
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

// flattenCell puts a multi-line cell on one line.
func flattenCell(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// padRight pads a string to the specified display width with spaces.
func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// String renders the table. Headers are styled with TableHeaderStyle and
// cells with TableCellStyle; newlines inside cells are flattened.
func (t *Table) String() string {
	if len(t.Headers) == 0 {
		return ""
	}
	total := t.Width
	if total <= 0 {
		total = TerminalWidth()
	}
	widths := t.columnWidths(total)

	var b strings.Builder
	cells := make([]string, len(t.Headers))
	for i, header := range t.Headers {
		cells[i] = TableHeaderStyle.Render(padRight(truncateWithEllipsis(header, widths[i]), widths[i]))
	}
	b.WriteString(strings.TrimRight(strings.Join(cells, colGap), " "))
	b.WriteString("\n")
	b.WriteString(DimStyle.Render(strings.Repeat("─", sum(widths)+len(colGap)*(len(widths)-1))))
	b.WriteString("\n")

	for _, row := range t.Rows {
		for i := range t.Headers {
			val := ""
			if i < len(row) {
				val = flattenCell(row[i])
			}
			cells[i] = TableCellStyle.Render(padRight(truncateWithEllipsis(val, widths[i]), widths[i]))
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, colGap), " "))
		b.WriteString("\n")
	}
	return b.String()
}

// Render prints the table. Tables are data and are printed in quiet mode.
func (t *Table) Render() {
	if s := t.String(); s != "" {
		_, _ = writer().Write([]byte(s))
	}
}
