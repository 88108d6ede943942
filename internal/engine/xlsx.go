package engine

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXEngine renders a document as an Excel workbook, one sheet per dataset.
type XLSXEngine struct{}

// Render fills a new workbook with header rows and dataset rows.
func (XLSXEngine) Render(doc Document, data []Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, ds := range data {
		sheet := ds.Spec.Name
		if i == 0 {
			// Rename the default sheet instead of leaving it empty.
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("failed to name sheet %q: %w", sheet, err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("failed to create sheet %q: %w", sheet, err)
			}
		}

		for col, c := range ds.Spec.Columns {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, c.Header); err != nil {
				return nil, fmt.Errorf("failed to write header %q: %w", c.Header, err)
			}
		}

		for rowIdx, row := range ds.Rows {
			for col, c := range ds.Spec.Columns {
				cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet, cell, cellValue(row[c.Field])); err != nil {
					return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType returns the MIME type of the rendered output.
func (XLSXEngine) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension returns the output file extension.
func (XLSXEngine) FileExtension() string {
	return "xlsx"
}
