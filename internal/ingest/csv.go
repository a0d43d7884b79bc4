package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

const utf8BOM = "\ufeff"

// ReadCSV reads delimited text with a header row.
func ReadCSV(r io.Reader, delimiter rune) (*domain.Table, error) {
	cr := csv.NewReader(r)
	if delimiter != 0 {
		cr.Comma = delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", domain.ErrIngestion, domain.ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading CSV header: %w", domain.ErrIngestion, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading CSV: %w", domain.ErrIngestion, err)
	}

	return newTable(header, rows)
}
