package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

func TestWriteCSV(t *testing.T) {
	tbl := &domain.Table{
		Columns: []string{"Ciudad", "deviation", "alert"},
		Rows: [][]string{
			{"PUERTO CARREÑO", "2.5", "true"},
			{"Bogotá, D.C.", "", "false"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "Ciudad,deviation,alert\nPUERTO CARREÑO,2.5,true\n\"Bogotá, D.C.\",,false\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	tbl := &domain.Table{Columns: []string{"a"}, Rows: [][]string{{"1"}}}

	require.NoError(t, WriteFile(path, tbl))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(data))

	assert.Error(t, WriteFile(filepath.Join(t.TempDir(), "missing", "out.csv"), tbl))
}
