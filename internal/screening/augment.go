package screening

import (
	"fmt"
	"strconv"

	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/rules"
)

// Derived output column names, in output order after the source columns.
const (
	ColumnDeviation = "deviation"
	ColumnAtypical  = "is_atypical"
	ColumnRuleCount = "rule_count"
	ColumnAlert     = "alert"
)

// DerivedColumns returns the names of the derived columns in output order.
func DerivedColumns() []string {
	cols := make([]string, 0, 4+domain.RuleCount+rules.PairCount)
	cols = append(cols, ColumnDeviation, ColumnAtypical)
	for id := domain.RuleID(1); id <= domain.RuleCount; id++ {
		cols = append(cols, id.Column())
	}
	cols = append(cols, ColumnRuleCount, ColumnAlert)
	for _, p := range rules.Pairs() {
		cols = append(cols, p.Key())
	}
	return cols
}

// OutputColumns returns the full header of the augmented table: the source
// columns unchanged, then the derived columns. A derived name already taken
// is renamed "<name>_<position>", repeatedly, until unique.
func OutputColumns(source []string) ([]string, []string) {
	derived := DerivedColumns()
	out := make([]string, 0, len(source)+len(derived))
	out = append(out, source...)

	used := make(map[string]bool, cap(out))
	for _, c := range source {
		used[c] = true
	}

	var warnings []string
	for _, name := range derived {
		pos := len(out)
		final := name
		for used[final] {
			final = final + "_" + strconv.Itoa(pos)
		}
		if final != name {
			warnings = append(warnings, fmt.Sprintf("column %q already exists, derived column written as %q", name, final))
		}
		used[final] = true
		out = append(out, final)
	}
	return out, warnings
}

// Augment builds the output table for the given positions of the screening,
// or for every record when positions is nil.
func Augment(sc *domain.Screening, positions []int) *domain.Table {
	columns, _ := OutputColumns(sc.Table.Columns)

	if positions == nil {
		positions = make([]int, len(sc.Evaluations))
		for i := range positions {
			positions[i] = i
		}
	}

	t := &domain.Table{Columns: columns, Rows: make([][]string, 0, len(positions))}
	for _, i := range positions {
		t.Rows = append(t.Rows, augmentRow(sc.Table.Rows[i], &sc.Evaluations[i], len(columns)))
	}
	return t
}

func augmentRow(src []string, e *domain.Evaluation, width int) []string {
	row := make([]string, 0, width)
	row = append(row, src...)
	row = append(row, FormatDeviation(e.Outlier), strconv.FormatBool(e.Outlier.Atypical))
	for _, hit := range e.Rules {
		row = append(row, strconv.FormatBool(hit))
	}
	row = append(row, strconv.Itoa(e.RuleCount), strconv.FormatBool(e.Alert))
	for _, c := range e.Combinations {
		row = append(row, strconv.FormatBool(c))
	}
	return row
}

// FormatDeviation renders the z-score with the shortest exact
// representation, or an empty cell when undefined.
func FormatDeviation(o domain.Outlier) string {
	if !o.Defined {
		return ""
	}
	return strconv.FormatFloat(o.Deviation, 'g', -1, 64)
}
