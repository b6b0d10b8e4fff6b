package tui

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/charmbracelet/lipgloss"

	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/donations"
	"github.com/pawtrack/pawtrack/pets"
)

// Column represents a table column
type Column struct {
	Title string
	Width int
}

// Row represents a table row
type Row []string

// Table renders data in a styled table format
type Table struct {
	columns  []Column
	rows     []Row
	styles   *Styles
	selected int // -1 for none
}

// NewTable creates a new table with the given columns
func NewTable(columns []Column, styles *Styles) *Table {
	if styles == nil {
		styles = DefaultStyles()
	}
	return &Table{
		columns:  columns,
		styles:   styles,
		selected: -1,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(row Row) {
	t.rows = append(t.rows, row)
}

// Select highlights row i.
func (t *Table) Select(i int) {
	t.selected = i
}

// Render renders the table as a string
func (t *Table) Render() string {
	var b strings.Builder

	headerCells := make([]string, len(t.columns))
	for i, col := range t.columns {
		headerCells[i] = t.styles.TableHeader.Width(col.Width).Render(col.Title)
	}
	b.WriteString(strings.Join(headerCells, " ") + "\n")

	for _, col := range t.columns {
		b.WriteString(t.styles.Muted.Render(strings.Repeat("─", col.Width)) + " ")
	}
	b.WriteString("\n")

	for r, row := range t.rows {
		style := t.styles.TableRow
		if r == t.selected {
			style = t.styles.Selected
		}
		cells := make([]string, len(t.columns))
		for i, col := range t.columns {
			var cell string
			if i < len(row) {
				cell = truncate(row[i], col.Width)
			}
			cells[i] = style.Width(col.Width).Render(cell)
		}
		b.WriteString(strings.Join(cells, " ") + "\n")
	}

	return b.String()
}

// truncate shortens s to width display cells.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+2 > width {
		r = r[:len(r)-1]
	}
	return string(r) + ".."
}

var petColumns = []Column{
	{Title: "", Width: 2},
	{Title: "NAME", Width: 16},
	{Title: "GENDER", Width: 8},
	{Title: "BREED", Width: 18},
	{Title: "AGE", Width: 4},
	{Title: "STATUS", Width: 10},
	{Title: "PHOTO", Width: 5},
}

// RenderPetsTable renders the gallery. selected < 0 highlights nothing.
func RenderPetsTable(list *immutable.List[pets.Summary], selected int, styles *Styles) string {
	if list == nil || list.Len() == 0 {
		return styles.Muted.Render("  No pets yet. Press a to add one.") + "\n"
	}
	t := NewTable(petColumns, styles)
	t.Select(selected)
	itr := list.Iterator()
	for !itr.Done() {
		_, p := itr.Next()
		t.AddRow(append(Row{styles.StatusIcon(p.Status)}, p.Row()...))
	}
	return t.Render() + fmt.Sprintf("\n%s %d pets\n", styles.Muted.Render("Total:"), list.Len())
}

// RenderAppointmentsTable renders upcoming appointments.
func RenderAppointmentsTable(rows [][]string, styles *Styles) string {
	if len(rows) == 0 {
		return styles.Muted.Render("  No upcoming appointments") + "\n"
	}
	t := NewTable([]Column{
		{Title: "WHEN", Width: 16},
		{Title: "PET", Width: 14},
		{Title: "OWNER", Width: 14},
		{Title: "VET", Width: 14},
		{Title: "REASON", Width: 24},
	}, styles)
	for _, r := range rows {
		t.AddRow(r)
	}
	return t.Render()
}

// RenderDonationsTable renders donations and their total.
func RenderDonationsTable(list []database.Donation, total int64, styles *Styles) string {
	if len(list) == 0 {
		return styles.Muted.Render("  No donations recorded") + "\n"
	}
	t := NewTable([]Column{
		{Title: "DATE", Width: 10},
		{Title: "DONOR", Width: 18},
		{Title: "AMOUNT", Width: 10},
		{Title: "NOTE", Width: 28},
	}, styles)
	for _, d := range list {
		t.AddRow(donations.Row(d))
	}
	return t.Render() + fmt.Sprintf("\n%s %s from %d donations\n",
		styles.Muted.Render("Total:"), donations.FormatCents(total), len(list))
}
