package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

// ReadXLSX reads a worksheet whose first row is the header.
func ReadXLSX(r io.Reader, sheet string) (*domain.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook: %w", domain.ErrIngestion, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %w", domain.ErrIngestion, domain.ErrEmptyInput)
		}
		sheet = sheets[0]
	}

	// Stored values, not display text: number formats like "#,##0" would
	// otherwise turn amounts into "1,500,000".
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %w", domain.ErrIngestion, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrIngestion, domain.ErrEmptyInput)
	}

	// Trailing empty cells are omitted by GetRows; newTable pads them.
	// Rows wider than the header carry stray cells beyond the data.
	width := len(rows[0])
	body := rows[1:]
	for i, row := range body {
		if len(row) > width {
			body[i] = row[:width]
		}
	}
	return newTable(rows[0], body)
}
