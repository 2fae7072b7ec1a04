// Package ui provides rendering helpers for the herald CLI.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AshkanYarmoradi/go-herald/cli/styles"
)

// Table renders rows under a bordered header.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a new table with headers
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		widths:  widths,
	}
}

// AddRow adds a row to the table. Missing cells are left blank and extra
// values are dropped.
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.headers))
	for i := range t.headers {
		if i < len(values) {
			row[i] = values[i]
			if w := lipgloss.Width(values[i]); w > t.widths[i] {
				t.widths[i] = w
			}
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render returns the formatted table string
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Primary).
		Padding(0, 1)
	cellStyle := lipgloss.NewStyle().
		Foreground(styles.Text).
		Padding(0, 1)
	borderStyle := lipgloss.NewStyle().
		Foreground(styles.Border)

	var sb strings.Builder
	rule := func(left, mid, right string) {
		sb.WriteString(borderStyle.Render(left))
		for i, w := range t.widths {
			sb.WriteString(borderStyle.Render(strings.Repeat("─", w+2)))
			if i < len(t.widths)-1 {
				sb.WriteString(borderStyle.Render(mid))
			}
		}
		sb.WriteString(borderStyle.Render(right))
	}
	line := func(cells []string, style lipgloss.Style) {
		sb.WriteString(borderStyle.Render("│"))
		for i, cell := range cells {
			sb.WriteString(style.Width(t.widths[i] + 2).Render(cell))
			sb.WriteString(borderStyle.Render("│"))
		}
		sb.WriteString("\n")
	}

	rule("┌", "┬", "┐")
	sb.WriteString("\n")
	line(t.headers, headerStyle)
	rule("├", "┼", "┤")
	sb.WriteString("\n")
	for _, row := range t.rows {
		line(row, cellStyle)
	}
	rule("└", "┴", "┘")

	return sb.String()
}

// StatusBadge returns a styled status badge
func StatusBadge(status string) string {
	base := lipgloss.NewStyle().Padding(0, 1)

	switch strings.ToLower(status) {
	case "ok", "success", "completed", "enabled":
		return base.Background(styles.Success).Foreground(lipgloss.Color("#000000")).Render(status)
	case "skipped", "stopped", "disabled":
		return base.Background(styles.Warning).Foreground(lipgloss.Color("#000000")).Render(status)
	case "error", "failed":
		return base.Background(styles.Error).Foreground(lipgloss.Color("#FFFFFF")).Render(status)
	default:
		return base.Background(styles.Surface).Foreground(styles.Text).Render(status)
	}
}

// SimpleBanner returns the one-line herald banner.
func SimpleBanner() string {
	return styles.IconHerald + " " + lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Primary).
		Render("herald") +
		" " +
		styles.Muted.Render("- command delegation toolkit for Go")
}

// Divider returns a horizontal divider line
func Divider(width int) string {
	if width < 0 {
		width = 0
	}
	return styles.Dim.Render(strings.Repeat("─", width))
}

// ListItems formats a list of items with bullets
func ListItems(items []string) string {
	bullet := lipgloss.NewStyle().
		Foreground(styles.Primary).
		PaddingLeft(2).
		PaddingRight(1)

	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(bullet.Render(styles.IconDot))
		sb.WriteString(styles.Normal.Render(item))
		sb.WriteString("\n")
	}
	return sb.String()
}
