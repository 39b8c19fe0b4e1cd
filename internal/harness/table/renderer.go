// Package table renders the harness's terminal tables: test results, the
// run summary, the project matrix and capability probes.
package table

import (
	"bytes"
	"io"

	"github.com/olekukonko/tablewriter"
)

// Align is the alignment of a column's cells.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

func (a Align) writer() int {
	switch a {
	case AlignRight:
		return tablewriter.ALIGN_RIGHT
	case AlignCenter:
		return tablewriter.ALIGN_CENTER
	default:
		return tablewriter.ALIGN_LEFT
	}
}

// Column is one table column.
type Column struct {
	Header string
	Align  Align
	// MinWidth keeps a column from collapsing below this many cells.
	MinWidth int
}

// Section is a titled table. Empty is printed on its own when there are no
// rows.
type Section struct {
	Title   string
	Columns []Column
	Rows    [][]string
	Footer  []string
	Empty   string
}

// Renderer draws sections.
type Renderer interface {
	Render(s Section) string
	Write(w io.Writer, s Section)
}

type renderer struct {
	colors *ColorHelper
}

// NewRenderer creates a renderer that colors section titles when the
// terminal supports it.
func NewRenderer() Renderer {
	return &renderer{colors: NewColorHelper()}
}

func (r *renderer) Render(s Section) string {
	buf := &bytes.Buffer{}
	r.Write(buf, s)

	return buf.String()
}

func (r *renderer) Write(w io.Writer, s Section) {
	if len(s.Rows) == 0 && s.Empty != "" {
		_, _ = io.WriteString(w, s.Empty)
		return
	}

	if s.Title != "" {
		_, _ = io.WriteString(w, "\n"+r.colors.Header("▸ "+s.Title)+"\n\n")
	}

	var (
		width   = len(s.Columns)
		headers = make([]string, width)
		aligns  = make([]int, width)
		table   = tablewriter.NewWriter(w)
	)

	for i, c := range s.Columns {
		headers[i] = c.Header
		aligns[i] = c.Align.writer()
		if c.MinWidth > 0 {
			table.SetColMinWidth(i, c.MinWidth)
		}
	}

	table.SetHeader(headers)
	table.SetColumnAlignment(aligns)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetFooterAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetBorder(true)
	table.SetTablePadding(" ")

	for _, row := range s.Rows {
		table.Append(fit(row, width))
	}

	if len(s.Footer) > 0 {
		table.SetFooter(fit(s.Footer, width))
	}

	table.Render()
}

// fit pads or cuts a row to the column count; tablewriter misaligns ragged
// rows.
func fit(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)

	return out
}

var _ Renderer = (*renderer)(nil)
