// Package tadp implements the Transaction Aggregated Decision Processor.
// TADP counts the satisfied rules of a record and makes the alert decision.
package tadp

import (
	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/rules"
)

// AlertThreshold is the minimum number of satisfied rules that raises an alert.
const AlertThreshold = 2

// Processor aggregates rule results and produces the final decision.
type Processor struct {
	names map[domain.RuleID]string
}

// NewProcessor creates a processor. catalog supplies the rule names used
// as alert reasons; it may be nil.
func NewProcessor(catalog []*domain.RuleConfig) *Processor {
	p := &Processor{names: make(map[domain.RuleID]string, len(catalog))}
	for _, cfg := range catalog {
		p.names[cfg.ID] = cfg.Name
	}
	return p
}

// DecisionInput contains all data needed for a decision on one record.
type DecisionInput struct {
	Row     int
	Outlier domain.Outlier
	Result  rules.Result
}

// Process builds the evaluation of one record: rule count, alert flag and
// the expanded combination flags.
func (p *Processor) Process(input *DecisionInput) domain.Evaluation {
	count, alert := Decide(input.Result.Rules)
	return domain.Evaluation{
		Row:          input.Row,
		Outlier:      input.Outlier,
		Rules:        input.Result.Rules,
		RuleCount:    count,
		Alert:        alert,
		Combinations: rules.Expand(input.Result.Rules),
		Skipped:      input.Result.Skipped,
	}
}

// Decide returns the number of satisfied rules and whether it reaches
// AlertThreshold.
func Decide(v domain.RuleVector) (int, bool) {
	n := v.Count()
	return n, n >= AlertThreshold
}

// ShouldAlert returns true if the evaluation should trigger an alert.
func ShouldAlert(eval *domain.Evaluation) bool {
	return eval.Alert
}

// GetReasons returns the names of the satisfied rules in rule order.
func (p *Processor) GetReasons(eval *domain.Evaluation) []string {
	var reasons []string
	for _, id := range eval.Rules.Triggered() {
		if name, ok := p.names[id]; ok && name != "" {
			reasons = append(reasons, name)
		} else {
			reasons = append(reasons, id.Column())
		}
	}
	return reasons
}

// AlertEvent builds the bus payload for an alerted record.
func (p *Processor) AlertEvent(screeningID string, rec *domain.Record, eval *domain.Evaluation) domain.AlertEvent {
	return domain.AlertEvent{
		ScreeningID: screeningID,
		Row:         rec.Row,
		ClientID:    rec.ClientID,
		Value:       rec.Value,
		RuleCount:   eval.RuleCount,
		Rules:       eval.Rules.Triggered(),
		Reasons:     p.GetReasons(eval),
	}
}
