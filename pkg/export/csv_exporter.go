package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders a Document as consecutive CSV blocks, one per table.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes, for every table, a `section,caption` line, the header line and the rows.
// Blocks are separated by an empty line.
func (e *CSVExporter) Render(doc Document) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	first := true
	for _, section := range doc.Sections {
		for _, table := range section.Tables {
			if !first {
				writer.Flush()
				buf.WriteString("\n")
			}
			first = false
			if err := writer.Write([]string{section.Heading, table.Caption}); err != nil {
				return nil, fmt.Errorf("write csv block title: %w", err)
			}
			if err := writer.Write(table.Headers); err != nil {
				return nil, fmt.Errorf("write csv headers: %w", err)
			}
			for _, row := range table.Rows {
				if err := writer.Write(row); err != nil {
					return nil, fmt.Errorf("write csv row: %w", err)
				}
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
