package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(BuildInfo{Version: "test", Commit: "none", BuildDate: "unknown"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSample(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("ID Cliente,Valor transacción,PEP,Canal de pago,Ciudad,Código CIIU,Producto\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "C%d,%d,No,Efectivo,BOGOTA,1111,Ahorros\n", i%3, 1000+i*10)
	}
	b.WriteString("X1,90000,Si,Cripto,Leticia,8639,CDT\n")
	b.WriteString("X2,abc,No,Efectivo,BOGOTA,1111,Ahorros\n")

	path := filepath.Join(t.TempDir(), "movimientos.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestRulesCommand(t *testing.T) {
	out, err := run(t, "rules")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "rules:\n"))
	assert.Equal(t, domain.RuleCount, strings.Count(out, "\n  - id: "))
	assert.Contains(t, out, "column: rule_1\n")
	assert.Contains(t, out, "column: rule_20\n")

	out, err = run(t, "rules", "--combinations")
	require.NoError(t, err)
	assert.Equal(t, 190, strings.Count(out, "key: combination_"))
	assert.Contains(t, out, "key: combination_19_20")
}

func TestScreenCommand(t *testing.T) {
	input := writeSample(t)
	output := filepath.Join(t.TempDir(), "resultados.csv")

	out, err := run(t, "screen", input, "-o", output, "--as-of", "2025-06-30", "--distribution", "city")
	require.NoError(t, err)

	assert.Contains(t, out, "movimientos.csv")
	assert.Contains(t, out, "2025-06-30")
	assert.Contains(t, out, "Analyzed")
	assert.Contains(t, out, "rule_20")
	assert.Contains(t, out, "Distribution by city")
	assert.Contains(t, out, "1 rows dropped")
	assert.Contains(t, out, "Wrote 31 of 31 records to "+output)

	lines := readLines(t, output)
	require.Len(t, lines, 32)
	header := strings.Split(lines[0], ",")
	assert.Equal(t, "ID Cliente", header[0])
	assert.Equal(t, "deviation", header[7])
	assert.Equal(t, "combination_19_20", header[len(header)-1])
	assert.Len(t, header, 7+2+20+2+190)
}

func TestScreenCommandFilters(t *testing.T) {
	input := writeSample(t)
	output := filepath.Join(t.TempDir(), "alerts.csv")

	out, err := run(t, "screen", input, "-o", output, "--as-of", "2025-06-30",
		"--alerts-only", "--city", "leticia", "--channel", "Crypto", "--json")
	require.NoError(t, err)

	var summary domain.Summary
	require.NoError(t, json.NewDecoder(strings.NewReader(out)).Decode(&summary))
	assert.Equal(t, 31, summary.Analyzed)
	assert.Equal(t, 1, summary.Dropped)

	lines := readLines(t, output)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "X1,90000,"))
}

func TestScreenCommandErrors(t *testing.T) {
	input := writeSample(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing file", []string{"screen", filepath.Join(dir, "nope.csv")}, domain.ErrIngestion},
		{"unsupported format", []string{"screen", filepath.Join(dir, "data.pdf")}, domain.ErrUnsupportedFormat},
		{"bad mode", []string{"screen", input, "--mode", "some"}, domain.ErrInvalidFilter},
		{"bad combination", []string{"screen", input, "--combination", "combination_4_4"}, domain.ErrInvalidFilter},
		{"bad as-of", []string{"screen", input, "--as-of", "ayer"}, domain.ErrInvalidFilter},
		{"inverted range", []string{"screen", input, "--onboarded-from", "2024-02-01", "--onboarded-to", "2024-01-01"}, domain.ErrInvalidFilter},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, append(tc.args, "-o", filepath.Join(dir, "out.csv"))...)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := run(t, "screen")
	assert.Error(t, err)
}

func TestBadConfig(t *testing.T) {
	t.Setenv("LAFT_CACHE_TYPE", "memcached")
	_, err := run(t, "rules")
	assert.Error(t, err)
}

func TestBenchmarkCommand(t *testing.T) {
	var b strings.Builder
	b.WriteString("client_id,transaction_value,pep,payment_channel,city,reportado\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "C%d,%d,No,Efectivo,BOGOTA,no\n", i%3, 1000+i*10)
	}
	b.WriteString("X1,90000,Si,Cripto,Leticia,si\n")
	path := filepath.Join(t.TempDir(), "labeled.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	out, err := run(t, "benchmark", path, "--as-of", "2025-06-30")
	require.NoError(t, err)
	assert.Contains(t, out, "Confusion matrix")
	assert.Contains(t, out, "Recall")
	assert.Regexp(t, `Scored\s+31 \(unlabeled 0\)`, out)

	_, err = run(t, "benchmark", path, "--label", "fraud")
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}
