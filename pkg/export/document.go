package export

import "fmt"

// Table is one titled grid of a document.
type Table struct {
	Caption string
	Headers []string
	// Widths holds relative column widths; equal widths are used when empty.
	Widths []float64
	Rows   [][]string
}

// Section groups the tables printed under one heading, e.g. one exam day.
type Section struct {
	Heading string
	Tables  []Table
}

// Document is the renderer-neutral form of an export.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

// Validate checks that every table is rectangular.
func (d Document) Validate() error {
	for _, section := range d.Sections {
		for _, table := range section.Tables {
			if len(table.Headers) == 0 {
				return fmt.Errorf("table %q in section %q has no headers", table.Caption, section.Heading)
			}
			if len(table.Widths) > 0 && len(table.Widths) != len(table.Headers) {
				return fmt.Errorf("table %q: %d widths for %d columns", table.Caption, len(table.Widths), len(table.Headers))
			}
			for i, row := range table.Rows {
				if len(row) != len(table.Headers) {
					return fmt.Errorf("table %q row %d: expected %d cells, got %d", table.Caption, i+1, len(table.Headers), len(row))
				}
			}
		}
	}
	return nil
}
