// Package rules provides the CEL-Go based rule evaluation engine.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"golang.org/x/sync/errgroup"

	"github.com/opensource-finance/laftscreen/internal/aggregate"
	"github.com/opensource-finance/laftscreen/internal/domain"
)

// Engine is the CEL-based rule evaluation engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules []*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program

	requires        domain.FieldSet
	datasetRequires domain.FieldSet
}

// Dataset is the read-only context shared by every record of a screening.
type Dataset struct {
	Baseline domain.Baseline
	Clients  *aggregate.Clients

	// Columns is the set of fields bound to a column of the source table.
	Columns domain.FieldSet

	// AsOf is the evaluation date for onboarding age.
	AsOf time.Time
}

// Result is the rule outcome for one record.
type Result struct {
	Rules   domain.RuleVector
	Skipped []domain.RuleSkip
}

// NewEngine creates a new rule evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}

	env, err := cel.NewEnv(
		// Value and baseline
		cel.Variable("v", cel.DoubleType),
		cel.Variable("mean", cel.DoubleType),
		cel.Variable("stddev", cel.DoubleType),
		cel.Variable("deviation", cel.DoubleType),
		cel.Variable("is_atypical", cel.BoolType),

		// Amounts
		cel.Variable("assets", cel.DoubleType),
		cel.Variable("liabilities", cel.DoubleType),
		cel.Variable("income", cel.DoubleType),
		cel.Variable("expenses", cel.DoubleType),
		cel.Variable("net_flow_balance", cel.DoubleType),

		// Categories
		cel.Variable("pep", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("segment", cel.StringType),
		cel.Variable("tx_class", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("occupation_code", cel.DoubleType),
		cel.Variable("industry_code", cel.DoubleType),

		// Derived
		cel.Variable("onboarding_age_days", cel.DoubleType),
		cel.Variable("atypical_count", cel.IntType),
		cel.Variable("distinct_products", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		maxWorkers: maxWorkers,
	}, nil
}

// NewDefaultEngine creates an engine loaded with the built-in rule bank.
func NewDefaultEngine(maxWorkers int) (*Engine, error) {
	e, err := NewEngine(maxWorkers)
	if err != nil {
		return nil, err
	}
	if err := e.LoadRules(BuiltinRules()); err != nil {
		return nil, err
	}
	return e, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	_, err := e.compileRule(cfg)
	return err
}

// LoadRules compiles the given rules and replaces the loaded set.
// Ids must be valid and distinct.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	compiled := make([]*CompiledRule, 0, len(configs))
	seen := make(map[domain.RuleID]bool, len(configs))
	for _, cfg := range configs {
		if !cfg.ID.Valid() {
			return fmt.Errorf("rule %d: id out of range 1..%d", cfg.ID, domain.RuleCount)
		}
		if seen[cfg.ID] {
			return fmt.Errorf("rule %d: duplicate id", cfg.ID)
		}
		seen[cfg.ID] = true

		c, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}
	sort.Slice(compiled, func(i, j int) bool {
		return compiled[i].Config.ID < compiled[j].Config.ID
	})

	e.mu.Lock()
	e.compiledRules = compiled
	e.mu.Unlock()
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the loaded rule configurations in id order.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Evaluate runs every loaded rule against one record. A rule whose inputs
// are unavailable is forced to false and reported in Skipped.
func (e *Engine) Evaluate(rec *domain.Record, out domain.Outlier, ds *Dataset) Result {
	e.mu.RLock()
	rules := e.compiledRules
	e.mu.RUnlock()

	var res Result
	var activation map[string]any
	for _, rule := range rules {
		if skip, ok := checkInputs(rule, rec, ds); !ok {
			res.Skipped = append(res.Skipped, skip)
			continue
		}
		if activation == nil {
			activation = newActivation(rec, out, ds)
		}

		val, _, err := rule.Program.Eval(activation)
		if err != nil {
			res.Skipped = append(res.Skipped, domain.RuleSkip{
				Rule:   rule.Config.ID,
				Reason: domain.SkipEvaluationError,
			})
			continue
		}
		res.Rules.Set(rule.Config.ID, val == types.True)
	}
	return res
}

// EvaluateBatch evaluates records in parallel. outliers is aligned with
// records, and so is the returned slice.
func (e *Engine) EvaluateBatch(ctx context.Context, records []domain.Record, outliers []domain.Outlier, ds *Dataset) ([]Result, error) {
	if len(outliers) != len(records) {
		return nil, fmt.Errorf("outliers: expected %d entries, got %d", len(records), len(outliers))
	}

	results := make([]Result, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)

	for start := 0; start < len(records); start += batchSize {
		start := start
		end := min(start+batchSize, len(records))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				results[i] = e.Evaluate(&records[i], outliers[i], ds)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

const batchSize = 256

func checkInputs(rule *CompiledRule, rec *domain.Record, ds *Dataset) (domain.RuleSkip, bool) {
	id := rule.Config.ID
	if rule.Config.DeviationBased && ds.Baseline.Degenerate {
		return domain.RuleSkip{Rule: id, Reason: domain.SkipDegenerateBaseline}, false
	}
	if missing := ds.Columns.Missing(rule.datasetRequires); len(missing) > 0 {
		return domain.RuleSkip{Rule: id, Reason: domain.SkipMissingColumn, Fields: missing}, false
	}
	if missing := rec.Present.Missing(rule.requires); len(missing) > 0 {
		return domain.RuleSkip{Rule: id, Reason: domain.SkipMissingField, Fields: missing}, false
	}
	return domain.RuleSkip{}, true
}

func newActivation(rec *domain.Record, out domain.Outlier, ds *Dataset) map[string]any {
	var ageDays float64
	if rec.Has(domain.FieldOnboardingDate) {
		ageDays = ds.AsOf.Sub(rec.OnboardingDate).Hours() / 24
	}

	var atypical, products int64
	if ds.Clients != nil && rec.Has(domain.FieldClientID) {
		atypical = int64(ds.Clients.AtypicalCount(rec.ClientID))
		products = int64(ds.Clients.DistinctProducts(rec.ClientID))
	}

	return map[string]any{
		"v":           rec.Value,
		"mean":        ds.Baseline.Mean,
		"stddev":      ds.Baseline.StdDev,
		"deviation":   out.Deviation,
		"is_atypical": out.Atypical,

		"assets":           rec.Assets,
		"liabilities":      rec.Liabilities,
		"income":           rec.Income,
		"expenses":         rec.Expenses,
		"net_flow_balance": rec.NetFlowBalance,

		"pep":             rec.PEP,
		"channel":         rec.Channel,
		"segment":         rec.Segment,
		"tx_class":        rec.Class,
		"city":            rec.City,
		"occupation_code": rec.OccupationCode,
		"industry_code":   rec.IndustryCode,

		"onboarding_age_days": ageDays,
		"atypical_count":      atypical,
		"distinct_products":   products,
	}
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %d: %w", cfg.ID, issues.Err())
	}

	if outputType := ast.OutputType(); outputType != cel.BoolType {
		return nil, fmt.Errorf("rule %d: expression must return bool, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %d: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:          cfg,
		Program:         program,
		requires:        domain.NewFieldSet(cfg.Requires...),
		datasetRequires: domain.NewFieldSet(cfg.DatasetRequires...),
	}, nil
}
