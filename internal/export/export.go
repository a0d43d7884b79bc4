// Package export writes augmented screening tables.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

// DefaultFileName is the name offered for downloads.
const DefaultFileName = "resultados_laft.csv"

// ContentType is the MIME type of the CSV output.
const ContentType = "text/csv; charset=utf-8"

// WriteCSV writes the header and rows of t as comma-separated UTF-8.
func WriteCSV(w io.Writer, t *domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	return nil
}

// WriteFile writes t to path, replacing any existing file.
func WriteFile(path string, t *domain.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return WriteCSV(f, t)
}
