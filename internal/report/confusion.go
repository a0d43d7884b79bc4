package report

import (
	"fmt"

	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/ingest"
)

// DefaultPositiveLabels are the label cells counted as confirmed cases.
var DefaultPositiveLabels = []string{"1", "true", "yes", "si", "x", "reportado", "reported"}

// Confusion compares alerts against a ground-truth label column, such as
// the records later reported to the financial intelligence unit.
type Confusion struct {
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`

	// Unlabeled records have an empty label cell and are not scored.
	Unlabeled int `json:"unlabeled"`
}

// Score builds the confusion matrix of alert versus label. Label cells
// matching one of positive (case and accent insensitive) are positives;
// any other non-empty cell is a negative.
func Score(sc *domain.Screening, labelColumn string, positive []string) (Confusion, error) {
	var c Confusion
	if sc.Table == nil {
		return c, fmt.Errorf("%w: screening has no source table", domain.ErrInvalidFilter)
	}

	col := sc.Table.ColumnIndex(labelColumn)
	if col < 0 {
		want := ingest.HeaderKey(labelColumn)
		for i, name := range sc.Table.Columns {
			if ingest.HeaderKey(name) == want {
				col = i
				break
			}
		}
	}
	if col < 0 {
		return c, fmt.Errorf("%w: label column %q not found", domain.ErrInvalidFilter, labelColumn)
	}

	if len(positive) == 0 {
		positive = DefaultPositiveLabels
	}
	positives := make(map[string]bool, len(positive))
	for _, p := range positive {
		positives[ingest.HeaderKey(p)] = true
	}

	for i := range sc.Evaluations {
		label := ingest.HeaderKey(sc.Table.Cell(i, col))
		if label == "" {
			c.Unlabeled++
			continue
		}
		actual := positives[label]
		predicted := sc.Evaluations[i].Alert
		switch {
		case predicted && actual:
			c.TruePositives++
		case predicted && !actual:
			c.FalsePositives++
		case !predicted && !actual:
			c.TrueNegatives++
		default:
			c.FalseNegatives++
		}
	}
	return c, nil
}

// Scored is the number of labeled records.
func (c Confusion) Scored() int {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Precision is the share of alerts that were confirmed cases.
func (c Confusion) Precision() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// Recall is the share of confirmed cases that raised an alert.
func (c Confusion) Recall() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

// F1 is the harmonic mean of precision and recall.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy is the share of labeled records classified correctly.
func (c Confusion) Accuracy() float64 {
	return ratio(c.TruePositives+c.TrueNegatives, c.Scored())
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
