package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
)

// Column defines a table column.
type Column struct {
	Title string
	Width int
}

// Row is a slice of cell values.
type Row []string

// Table renders a lipgloss-styled table.
type Table struct {
	Columns []Column
	Rows    []Row
	SelIdx  int // -1 = none
}

// NewTable creates a new table.
func NewTable(cols []Column) *Table {
	return &Table{Columns: cols, SelIdx: -1}
}

// AddRow appends a row.
func (t *Table) AddRow(r Row) {
	t.Rows = append(t.Rows, r)
}

// Render returns the full table as a string. Cells are padded before styling
// so widths stay exact.
func (t *Table) Render() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	cellStyle := lipgloss.NewStyle().Foreground(ColorValue)

	headers := make([]string, 0, len(t.Columns))
	divider := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		headers = append(headers, headerStyle.Render(fit(col.Title, col.Width)))
		divider = append(divider, StyleDim.Render(strings.Repeat("-", col.Width)))
	}
	sb.WriteString(strings.Join(headers, " ") + "\n")
	sb.WriteString(strings.Join(divider, " ") + "\n")

	for i, row := range t.Rows {
		style := cellStyle
		if i == t.SelIdx {
			style = StyleSelected
		}
		cells := make([]string, 0, len(t.Columns))
		for j, col := range t.Columns {
			val := ""
			if j < len(row) {
				val = row[j]
			}
			cells = append(cells, style.Render(fit(val, col.Width)))
		}
		sb.WriteString(strings.Join(cells, " ") + "\n")
	}

	return sb.String()
}

// fit left-aligns s within exactly width runes, marking truncation with "…".
func fit(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		if width <= 1 {
			return string(r[:width])
		}
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-len(r))
}

// WalletTable lists catalog descriptors.
func WalletTable(ds []catalog.Descriptor) *Table {
	t := NewTable([]Column{
		{Title: "ID", Width: 14},
		{Title: "NAME", Width: 18},
		{Title: "KIND", Width: 9},
		{Title: "CHAINS", Width: 12},
		{Title: "LINK", Width: 30},
	})
	for _, d := range ds {
		chains := make([]string, 0, len(d.Chains))
		for _, c := range d.Chains {
			chains = append(chains, string(c))
		}
		link := d.UniversalLink
		if link == "" {
			link = d.NativeScheme
		}
		if link == "" {
			link = "-"
		}
		t.AddRow(Row{d.ID, d.Name, string(d.Kind), strings.Join(chains, ","), link})
	}
	return t
}

// KeyValueBlock renders a set of key-value pairs in a bordered box.
func KeyValueBlock(title string, pairs [][2]string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StyleTitle.Render(title))
		sb.WriteString("\n")
	}
	for _, p := range pairs {
		key := StyleMeta.Render(fmt.Sprintf("%-18s", p[0]+":"))
		sb.WriteString("  " + key + " " + StyleValue.Render(p[1]) + "\n")
	}
	return StyleBorder.Render(sb.String())
}
