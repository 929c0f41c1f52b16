package display

import (
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TableOptions configures table rendering. Width of zero lets the table size
// itself to its content. AlignRight lists column indexes rendered
// right-aligned, for counts.
type TableOptions struct {
	Title      string
	NoColor    bool
	Width      int
	AlignRight []int
}

func NewTable(headers []string, rows [][]string) string {
	return NewTableWithOptions(headers, rows, TableOptions{})
}

// NewTableWithOptions renders a rounded lipgloss table, shrinking it to
// opts.Width when it would overflow.
func NewTableWithOptions(headers []string, rows [][]string, opts TableOptions) string {
	base := lipgloss.NewStyle().Padding(0, 1)
	header := base.Bold(!opts.NoColor)
	border := lipgloss.NewStyle()
	if !opts.NoColor {
		border = border.Foreground(lipgloss.Color("240"))
	}

	t := table.New().
		Headers(headers...).
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(border).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := base
			if row == table.HeaderRow {
				s = header
			}
			if slices.Contains(opts.AlignRight, col) {
				s = s.Align(lipgloss.Right)
			}
			return s
		})

	rendered := t.String()
	if opts.Width > 0 && lipgloss.Width(rendered) > opts.Width {
		rendered = t.Width(opts.Width).String()
	}

	if opts.Title == "" {
		return rendered
	}
	title := opts.Title
	if !opts.NoColor {
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}
	return title + "\n" + rendered
}
