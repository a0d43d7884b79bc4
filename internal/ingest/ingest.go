// Package ingest loads delimited-text and spreadsheet files into tables and
// binds them to the declared record schema.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

// Format is an input file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Options tune the readers.
type Options struct {
	// Delimiter for CSV input; zero means ','.
	Delimiter rune

	// Sheet for XLSX input; empty means the first sheet.
	Sheet string
}

// DetectFormat infers the format from a file name or MIME type.
func DetectFormat(nameOrType string) (Format, error) {
	s := strings.ToLower(strings.TrimSpace(nameOrType))
	switch {
	case strings.HasSuffix(s, ".csv"), strings.HasSuffix(s, ".txt"),
		strings.HasPrefix(s, "text/csv"), strings.HasPrefix(s, "text/plain"):
		return FormatCSV, nil
	case strings.HasSuffix(s, ".xlsx"),
		strings.HasPrefix(s, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %w: %q", domain.ErrIngestion, domain.ErrUnsupportedFormat, nameOrType)
}

// Load reads a table in the given format.
func Load(r io.Reader, format Format, opts Options) (*domain.Table, error) {
	var (
		t   *domain.Table
		err error
	)
	switch format {
	case FormatCSV:
		t, err = ReadCSV(r, opts.Delimiter)
	case FormatXLSX:
		t, err = ReadXLSX(r, opts.Sheet)
	default:
		return nil, fmt.Errorf("%w: %w: %q", domain.ErrIngestion, domain.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile opens path and loads it according to its extension.
func LoadFile(path string, opts Options) (*domain.Table, error) {
	format, err := DetectFormat(filepath.Base(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIngestion, err)
	}
	defer f.Close()

	return Load(f, format, opts)
}

// newTable builds a table from a header and raw rows: blank headers are
// named "Unnamed: <i>", repeated headers get ".1", ".2" suffixes, and
// short rows are padded. Header text is otherwise kept as written; alias
// matching goes through HeaderKey.
func newTable(header []string, rows [][]string) (*domain.Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrIngestion, domain.ErrEmptyInput)
	}

	columns := make([]string, len(header))
	used := make(map[string]bool, len(header))
	repeats := make(map[string]int)
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for used[name] {
			repeats[h]++
			name = h + "." + strconv.Itoa(repeats[h])
		}
		used[name] = true
		columns[i] = name
	}

	t := &domain.Table{Columns: columns, Rows: make([][]string, 0, len(rows))}
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, fmt.Errorf("%w: row %d: expected %d fields, saw %d", domain.ErrIngestion, i+2, len(columns), len(row))
		}
		if isBlank(row) {
			continue
		}
		padded := make([]string, len(columns))
		copy(padded, row)
		t.Rows = append(t.Rows, padded)
	}
	return t, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
