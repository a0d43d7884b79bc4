package ingest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindAmount
	kindCategory
	kindCity
	kindCode
	kindDate
)

type fieldSpec struct {
	field   domain.Field
	kind    fieldKind
	aliases []string // in HeaderKey form
}

// declared is the record schema: every field, its type and the headers it
// is known by in source files.
var declared = []fieldSpec{
	{domain.FieldClientID, kindText, []string{"client id", "id cliente", "cliente"}},
	{domain.FieldValue, kindAmount, []string{"transaction value", "valor transaccion", "value", "valor", "amount", "monto"}},
	{domain.FieldAssets, kindAmount, []string{"assets", "activos"}},
	{domain.FieldLiabilities, kindAmount, []string{"liabilities", "pasivos"}},
	{domain.FieldIncome, kindAmount, []string{"income", "ingresos"}},
	{domain.FieldExpenses, kindAmount, []string{"expenses", "egresos"}},
	{domain.FieldNetFlowBalance, kindAmount, []string{"net flow balance", "balance flujo", "net flow"}},
	{domain.FieldPEP, kindCategory, []string{"pep"}},
	{domain.FieldChannel, kindCategory, []string{"channel", "payment channel", "canal de pago", "canal"}},
	{domain.FieldSegment, kindCategory, []string{"segment", "segmento"}},
	{domain.FieldClass, kindCategory, []string{"transaction class", "class", "clase transaccion", "clase"}},
	{domain.FieldOccupationCode, kindCode, []string{"occupation code", "codigo ocupacion"}},
	{domain.FieldCity, kindCity, []string{"city", "ciudad"}},
	{domain.FieldIndustryCode, kindCode, []string{"industry code", "codigo ciiu", "ciiu"}},
	{domain.FieldProduct, kindText, []string{"product", "producto"}},
	{domain.FieldOnboardingDate, kindDate, []string{"onboarding date", "fecha de vinculacion", "fecha vinculacion"}},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"01-02-06",
	"2006-01-02 15:04",
}

// Schema binds the declared record fields to the columns of a table and
// coerces cells to their declared types.
type Schema struct {
	overrides map[domain.Field]string
}

// NewSchema creates a schema. overrides maps canonical field names to
// source headers and takes precedence over the built-in aliases.
func NewSchema(overrides map[string]string) (*Schema, error) {
	s := &Schema{overrides: make(map[domain.Field]string, len(overrides))}
	for name, header := range overrides {
		f, ok := domain.ParseField(name)
		if !ok {
			return nil, fmt.Errorf("unknown field %q in column overrides", name)
		}
		s.overrides[f] = HeaderKey(header)
	}
	return s, nil
}

// Binding maps fields to column positions of one table.
type Binding struct {
	index   map[domain.Field]int
	Columns domain.FieldSet
}

// Column returns the column position bound to f, or -1.
func (b *Binding) Column(f domain.Field) int {
	if i, ok := b.index[f]; ok {
		return i
	}
	return -1
}

// Unbound returns the declared fields with no matching column.
func (b *Binding) Unbound() []domain.Field {
	var all domain.FieldSet
	for _, spec := range declared {
		all = all.Add(spec.field)
	}
	return b.Columns.Missing(all)
}

// Bind resolves every declared field against the table header.
func (s *Schema) Bind(t *domain.Table) *Binding {
	keys := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		keys[i] = HeaderKey(c)
	}

	b := &Binding{index: make(map[domain.Field]int)}
	taken := make(map[int]bool)
	for _, spec := range declared {
		candidates := spec.aliases
		if o, ok := s.overrides[spec.field]; ok {
			candidates = []string{o}
		}
		if col := findColumn(keys, candidates, taken); col >= 0 {
			b.index[spec.field] = col
			b.Columns = b.Columns.Add(spec.field)
			taken[col] = true
		}
	}
	return b
}

func findColumn(keys, candidates []string, taken map[int]bool) int {
	for _, want := range candidates {
		for i, k := range keys {
			if k == want && !taken[i] {
				return i
			}
		}
	}
	return -1
}

// Result is the typed, cleaned view of a table.
type Result struct {
	// Table holds the source rows that survived value coercion.
	Table   *domain.Table
	Records []domain.Record
	Dropped []domain.DroppedRow
	Binding *Binding
}

// Coerce converts every row into a record. Rows whose transaction value is
// missing or not numeric are dropped; other unparseable cells only mark
// the field as absent on that record.
func (s *Schema) Coerce(t *domain.Table) (*Result, error) {
	b := s.Bind(t)
	valueCol := b.Column(domain.FieldValue)
	if valueCol < 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrIngestion, domain.ErrMissingValueColumn)
	}

	res := &Result{
		Table:   &domain.Table{Columns: t.Columns},
		Binding: b,
	}

	for i, row := range t.Rows {
		raw := strings.TrimSpace(cell(row, valueCol))
		if raw == "" {
			res.Dropped = append(res.Dropped, domain.DroppedRow{Row: i, Raw: raw, Reason: "missing transaction value"})
			continue
		}
		value, err := parseNumber(raw)
		if err != nil {
			res.Dropped = append(res.Dropped, domain.DroppedRow{Row: i, Raw: raw, Reason: "non-numeric transaction value"})
			continue
		}

		rec := domain.Record{Row: i, Value: value}
		rec.Present = rec.Present.Add(domain.FieldValue)

		for _, spec := range declared {
			if spec.field == domain.FieldValue {
				continue
			}
			col := b.Column(spec.field)
			if col < 0 {
				continue
			}
			coerceField(&rec, spec, cell(row, col))
		}

		res.Table.Rows = append(res.Table.Rows, row)
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

func coerceField(rec *domain.Record, spec fieldSpec, raw string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}

	fail := func(err error) {
		rec.Issues = append(rec.Issues, domain.FieldIssue{Field: spec.field, Raw: raw, Err: err.Error()})
	}

	switch spec.kind {
	case kindText:
		setText(rec, spec.field, v)
	case kindCategory:
		setText(rec, spec.field, NormalizeCategory(v))
	case kindCity:
		setText(rec, spec.field, NormalizeCity(v))
	case kindAmount, kindCode:
		n, err := parseNumber(v)
		if err != nil {
			fail(err)
			return
		}
		setNumber(rec, spec.field, n)
	case kindDate:
		d, err := ParseDate(v)
		if err != nil {
			fail(err)
			return
		}
		rec.OnboardingDate = d
	}
	rec.Present = rec.Present.Add(spec.field)
}

func setText(rec *domain.Record, f domain.Field, v string) {
	switch f {
	case domain.FieldClientID:
		rec.ClientID = v
	case domain.FieldProduct:
		rec.Product = v
	case domain.FieldPEP:
		rec.PEP = v
	case domain.FieldChannel:
		rec.Channel = v
	case domain.FieldSegment:
		rec.Segment = v
	case domain.FieldClass:
		rec.Class = v
	case domain.FieldCity:
		rec.City = v
	}
}

func setNumber(rec *domain.Record, f domain.Field, n float64) {
	switch f {
	case domain.FieldAssets:
		rec.Assets = n
	case domain.FieldLiabilities:
		rec.Liabilities = n
	case domain.FieldIncome:
		rec.Income = n
	case domain.FieldExpenses:
		rec.Expenses = n
	case domain.FieldNetFlowBalance:
		rec.NetFlowBalance = n
	case domain.FieldOccupationCode:
		rec.OccupationCode = n
	case domain.FieldIndustryCode:
		rec.IndustryCode = n
	}
}

func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	n := d.InexactFloat64()
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, fmt.Errorf("not a number: %q out of range", s)
	}
	return n, nil
}

// ParseDate accepts ISO dates and timestamps, month-first slash dates and
// Excel serial day numbers.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if n, err := parseNumber(s); err == nil && n > 0 {
		if t, err := excelize.ExcelDateToTime(n, false); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not a date: %q", s)
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
