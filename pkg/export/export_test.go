package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	return Document{
		Title:    "Watchtower for Exams - Schedule",
		Subtitle: "Invigilation Duties",
		Sections: []Section{
			{
				Heading: "Day 1",
				Tables: []Table{
					{
						Caption: "Grades 4-6",
						Headers: []string{"S.N", "Exam Hall", "1st Half", "2nd Half"},
						Widths:  []float64{1, 3, 3, 3},
						Rows: [][]string{
							{"1", "English (4A)", "Asha", "Bikash"},
							{"2", "English (4B)", "Chandra", "UNASSIGNED"},
						},
					},
				},
			},
			{
				Heading: "Duty Distribution",
				Tables: []Table{
					{Caption: "Grades 4-6", Headers: []string{"Teacher", "Duties"}, Rows: [][]string{{"Asha", "1"}}},
				},
			},
		},
	}
}

func TestCSVExporterRendersBlocks(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDocument())
	require.NoError(t, err)

	expected := "Day 1,Grades 4-6\n" +
		"S.N,Exam Hall,1st Half,2nd Half\n" +
		"1,English (4A),Asha,Bikash\n" +
		"2,English (4B),Chandra,UNASSIGNED\n" +
		"\n" +
		"Duty Distribution,Grades 4-6\n" +
		"Teacher,Duties\n" +
		"Asha,1\n"
	assert.Equal(t, expected, string(out))
}

func TestPDFExporterProducesPDF(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestValidateRejectsRaggedRows(t *testing.T) {
	doc := sampleDocument()
	doc.Sections[0].Tables[0].Rows = append(doc.Sections[0].Tables[0].Rows, []string{"3", "Math (5A)"})

	_, err := NewCSVExporter().Render(doc)
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(doc)
	assert.Error(t, err)
}

func TestColumnWidthsScaleToPage(t *testing.T) {
	widths := columnWidths(Table{Headers: []string{"a", "b"}, Widths: []float64{1, 3}})
	assert.InDelta(t, 47.5, widths[0], 0.001)
	assert.InDelta(t, 142.5, widths[1], 0.001)

	even := columnWidths(Table{Headers: []string{"a", "b"}})
	assert.InDelta(t, 95.0, even[0], 0.001)
}
