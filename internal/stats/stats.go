// Package stats computes the dataset baseline and classifies outliers.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

// AtypicalThreshold is the absolute z-score above which a value is atypical.
const AtypicalThreshold = 2.0

// Baseline computes the mean and sample standard deviation of values.
// With fewer than two values, or a zero / non-finite stddev, the baseline
// is marked degenerate and the undefined statistics are reported as 0.
func Baseline(values []float64) domain.Baseline {
	b := domain.Baseline{Count: len(values)}
	if len(values) == 0 {
		b.Degenerate = true
		return b
	}

	mean, std := stat.MeanStdDev(values, nil)
	if isFinite(mean) {
		b.Mean = mean
	}
	if len(values) < 2 || !isFinite(std) || std == 0 {
		b.Degenerate = true
		return b
	}
	b.StdDev = std
	return b
}

// Classify computes the z-score of value against the baseline.
// The deviation is undefined, and the value never atypical, when the
// baseline is degenerate.
func Classify(value float64, b domain.Baseline) domain.Outlier {
	if b.Degenerate {
		return domain.Outlier{}
	}
	d := (value - b.Mean) / b.StdDev
	if !isFinite(d) {
		return domain.Outlier{}
	}
	return domain.Outlier{
		Deviation: d,
		Defined:   true,
		Atypical:  math.Abs(d) > AtypicalThreshold,
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
