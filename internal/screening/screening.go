// Package screening runs the evaluation pipeline over one dataset:
// coercion, baseline, outliers, client aggregates, rules and decision.
package screening

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/laftscreen/internal/aggregate"
	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/ingest"
	"github.com/opensource-finance/laftscreen/internal/rules"
	"github.com/opensource-finance/laftscreen/internal/stats"
	"github.com/opensource-finance/laftscreen/internal/tadp"
)

var tracer = otel.Tracer("laftscreen-screening")

// Screener evaluates datasets against the loaded rule bank.
type Screener struct {
	schema    *ingest.Schema
	engine    *rules.Engine
	processor *tadp.Processor
	logger    *slog.Logger
}

// NewScreener creates a screener. A nil logger uses slog.Default.
func NewScreener(schema *ingest.Schema, engine *rules.Engine, processor *tadp.Processor, logger *slog.Logger) *Screener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Screener{
		schema:    schema,
		engine:    engine,
		processor: processor,
		logger:    logger,
	}
}

// Processor returns the decision processor.
func (s *Screener) Processor() *tadp.Processor {
	return s.processor
}

// Screen evaluates every row of t. asOf is the evaluation date for
// onboarding age; the zero time means today. Ingestion errors abort before
// any evaluation.
func (s *Screener) Screen(ctx context.Context, t *domain.Table, source string, asOf time.Time) (*domain.Screening, error) {
	ctx, span := tracer.Start(ctx, "screening.Screen",
		trace.WithAttributes(
			attribute.String("screening.source", source),
			attribute.Int("screening.rows", t.Len()),
		),
	)
	defer span.End()

	start := time.Now()
	if asOf.IsZero() {
		asOf = today()
	}

	coerced, err := s.schema.Coerce(t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sc := &domain.Screening{
		ID:        uuid.New().String(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
		AsOf:      asOf,
		Table:     coerced.Table,
		Records:   coerced.Records,
		Dropped:   coerced.Dropped,
	}
	log := s.logger.With("screening_id", sc.ID, "source", source)

	if n := len(sc.Dropped); n > 0 {
		log.Warn("rows dropped", "count", n, "reason", "missing or non-numeric transaction value")
		sc.Warnings = append(sc.Warnings, fmt.Sprintf("%d rows dropped: missing or non-numeric transaction value", n))
	}
	if unbound := coerced.Binding.Unbound(); len(unbound) > 0 {
		log.Info("columns not found", "fields", fieldNames(unbound))
	}

	// Phase one: dataset-wide statistics and aggregates.
	values := make([]float64, len(sc.Records))
	for i := range sc.Records {
		values[i] = sc.Records[i].Value
	}
	sc.Baseline = stats.Baseline(values)
	if sc.Baseline.Degenerate {
		log.Warn("degenerate baseline, deviation rules disabled",
			"count", sc.Baseline.Count,
			"stddev", sc.Baseline.StdDev,
		)
		sc.Warnings = append(sc.Warnings, "standard deviation is zero or undefined: deviation-based rules disabled")
	}

	outliers := make([]domain.Outlier, len(sc.Records))
	for i := range sc.Records {
		outliers[i] = stats.Classify(sc.Records[i].Value, sc.Baseline)
	}

	ds := &rules.Dataset{
		Baseline: sc.Baseline,
		Clients:  aggregate.Build(sc.Records, outliers),
		Columns:  coerced.Binding.Columns,
		AsOf:     asOf,
	}

	// Phase two: independent per-record evaluation.
	results, err := s.engine.EvaluateBatch(ctx, sc.Records, outliers, ds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("evaluating rules: %w", err)
	}

	sc.Evaluations = make([]domain.Evaluation, len(results))
	alerts := 0
	for i := range results {
		sc.Evaluations[i] = s.processor.Process(&tadp.DecisionInput{
			Row:     i,
			Outlier: outliers[i],
			Result:  results[i],
		})
		if sc.Evaluations[i].Alert {
			alerts++
		}
	}

	sc.Warnings = append(sc.Warnings, s.logSkips(log, sc.Evaluations)...)
	_, colWarnings := OutputColumns(sc.Table.Columns)
	for _, w := range colWarnings {
		log.Warn("output column renamed", "detail", w)
	}
	sc.Warnings = append(sc.Warnings, colWarnings...)

	span.SetAttributes(
		attribute.Int("screening.analyzed", len(sc.Records)),
		attribute.Int("screening.alerts", alerts),
	)
	log.Info("screening complete",
		"analyzed", len(sc.Records),
		"dropped", len(sc.Dropped),
		"alerts", alerts,
		"mean", sc.Baseline.Mean,
		"stddev", sc.Baseline.StdDev,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return sc, nil
}

type skipKey struct {
	rule   domain.RuleID
	reason string
}

// logSkips reports each skipped rule once with its record count.
func (s *Screener) logSkips(log *slog.Logger, evals []domain.Evaluation) []string {
	counts := make(map[skipKey]int)
	fields := make(map[skipKey][]domain.Field)
	for i := range evals {
		for _, sk := range evals[i].Skipped {
			k := skipKey{sk.Rule, sk.Reason}
			counts[k]++
			if _, ok := fields[k]; !ok {
				fields[k] = sk.Fields
			}
		}
	}

	var warnings []string
	for id := domain.RuleID(1); id <= domain.RuleCount; id++ {
		for _, reason := range []string{domain.SkipMissingColumn, domain.SkipMissingField, domain.SkipEvaluationError} {
			k := skipKey{id, reason}
			n, ok := counts[k]
			if !ok {
				continue
			}
			log.Warn("rule skipped",
				"rule", int(id),
				"reason", reason,
				"fields", fieldNames(fields[k]),
				"records", n,
			)
			warnings = append(warnings, fmt.Sprintf("%s skipped for %d records: %s", id.Column(), n, reason))
		}
	}
	return warnings
}

func fieldNames(fields []domain.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	return names
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
