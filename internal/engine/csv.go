package engine

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVEngine renders the first dataset of a document as CSV.
type CSVEngine struct{}

// Render writes the header row followed by the dataset rows.
func (CSVEngine) Render(doc Document, data []Dataset) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no dataset to render")
	}
	ds := data[0]

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	headers := make([]string, len(ds.Spec.Columns))
	for i, c := range ds.Spec.Columns {
		headers[i] = c.Header
	}
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	record := make([]string, len(ds.Spec.Columns))
	for _, row := range ds.Rows {
		for i, c := range ds.Spec.Columns {
			record[i] = fmt.Sprintf("%v", cellValue(row[c.Field]))
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType returns the MIME type of the rendered output.
func (CSVEngine) ContentType() string {
	return "text/csv"
}

// FileExtension returns the output file extension.
func (CSVEngine) FileExtension() string {
	return "csv"
}
