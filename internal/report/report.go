// Package report derives the analyst-facing summaries of a screening.
package report

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

// Summarize computes the headline figures of the screening.
func Summarize(sc *domain.Screening) domain.Summary {
	s := domain.Summary{
		ID:        sc.ID,
		Source:    sc.Source,
		CreatedAt: sc.CreatedAt,
		AsOf:      sc.AsOf.Format("2006-01-02"),
		Analyzed:  len(sc.Evaluations),
		Dropped:   len(sc.Dropped),
		Baseline:  sc.Baseline,
		RuleHits:  make(map[domain.RuleID]int, domain.RuleCount),
		Warnings:  sc.Warnings,
	}

	flagged := decimal.Zero
	for i := range sc.Evaluations {
		e := &sc.Evaluations[i]
		if e.Alert {
			s.Alerts++
			flagged = flagged.Add(decimal.NewFromFloat(sc.Records[i].Value))
		}
		if e.Outlier.Atypical {
			s.Atypical++
		}
		for _, id := range e.Rules.Triggered() {
			s.RuleHits[id]++
		}
	}
	s.FlaggedValue = flagged.String()
	return s
}

// Bucket counts the records sharing one value of a field, split by alert.
type Bucket struct {
	Value    string `json:"value"`
	Alerts   int    `json:"alerts"`
	NoAlerts int    `json:"noAlerts"`
	Total    int    `json:"total"`
}

// FieldAtypical selects the atypical/typical distribution.
const FieldAtypical = "is_atypical"

// Missing labels records without a value for the field.
const Missing = "(missing)"

// DistributionFields lists the fields Distribution accepts.
var DistributionFields = []string{
	FieldAtypical,
	domain.FieldCity.String(),
	domain.FieldIndustryCode.String(),
	domain.FieldChannel.String(),
	domain.FieldSegment.String(),
	domain.FieldProduct.String(),
	domain.FieldOccupationCode.String(),
}

// Distribution counts records per value of field, largest buckets first.
func Distribution(sc *domain.Screening, field string) ([]Bucket, error) {
	label, err := labeler(field)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var buckets []Bucket
	for i := range sc.Evaluations {
		v := label(&sc.Records[i], &sc.Evaluations[i])
		pos, ok := index[v]
		if !ok {
			pos = len(buckets)
			index[v] = pos
			buckets = append(buckets, Bucket{Value: v})
		}
		b := &buckets[pos]
		b.Total++
		if sc.Evaluations[i].Alert {
			b.Alerts++
		} else {
			b.NoAlerts++
		}
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Total != buckets[j].Total {
			return buckets[i].Total > buckets[j].Total
		}
		return buckets[i].Value < buckets[j].Value
	})
	return buckets, nil
}

type labelFunc func(*domain.Record, *domain.Evaluation) string

func labeler(field string) (labelFunc, error) {
	if field == FieldAtypical {
		return func(_ *domain.Record, e *domain.Evaluation) string {
			return strconv.FormatBool(e.Outlier.Atypical)
		}, nil
	}

	f, ok := domain.ParseField(field)
	if !ok {
		return nil, fmt.Errorf("%w: unknown distribution field %q", domain.ErrInvalidFilter, field)
	}

	var get func(*domain.Record) string
	switch f {
	case domain.FieldCity:
		get = func(r *domain.Record) string { return r.City }
	case domain.FieldChannel:
		get = func(r *domain.Record) string { return r.Channel }
	case domain.FieldSegment:
		get = func(r *domain.Record) string { return r.Segment }
	case domain.FieldProduct:
		get = func(r *domain.Record) string { return r.Product }
	case domain.FieldIndustryCode:
		get = func(r *domain.Record) string { return formatCode(r.IndustryCode) }
	case domain.FieldOccupationCode:
		get = func(r *domain.Record) string { return formatCode(r.OccupationCode) }
	default:
		return nil, fmt.Errorf("%w: no distribution for field %q", domain.ErrInvalidFilter, field)
	}

	return func(r *domain.Record, _ *domain.Evaluation) string {
		if !r.Has(f) {
			return Missing
		}
		return get(r)
	}, nil
}

func formatCode(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
