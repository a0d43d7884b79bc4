package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RuleCount is the size of the fixed rule bank.
const RuleCount = 20

// RuleID identifies a rule of the bank, 1..RuleCount.
type RuleID int

// Valid reports whether the id names a rule of the bank.
func (id RuleID) Valid() bool {
	return id >= 1 && id <= RuleCount
}

// Column returns the output column name for the rule result.
func (id RuleID) Column() string {
	return "rule_" + strconv.Itoa(int(id))
}

// RuleConfig defines one detection rule of the bank.
type RuleConfig struct {
	ID          RuleID `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// CEL expression evaluated against the record activation; must return bool.
	Expression string `json:"expression" yaml:"expression"`

	// Record fields the expression reads. A record lacking any of them
	// skips the rule.
	Requires []Field `json:"-" yaml:"-"`

	// Columns that must exist in the dataset for the rule's aggregate.
	DatasetRequires []Field `json:"-" yaml:"-"`

	// DeviationBased rules are disabled when the baseline is degenerate.
	DeviationBased bool `json:"deviationBased" yaml:"deviation_based"`
}

// RuleVector holds one boolean per rule. Index 0 is rule 1.
type RuleVector [RuleCount]bool

// Get returns the result of rule id.
func (v RuleVector) Get(id RuleID) bool {
	if !id.Valid() {
		return false
	}
	return v[id-1]
}

// Set stores the result of rule id.
func (v *RuleVector) Set(id RuleID, ok bool) {
	if id.Valid() {
		v[id-1] = ok
	}
}

// Count returns the number of satisfied rules.
func (v RuleVector) Count() int {
	n := 0
	for _, ok := range v {
		if ok {
			n++
		}
	}
	return n
}

// Triggered returns the ids of satisfied rules in ascending order.
func (v RuleVector) Triggered() []RuleID {
	var ids []RuleID
	for i, ok := range v {
		if ok {
			ids = append(ids, RuleID(i+1))
		}
	}
	return ids
}

// RuleSkip explains why a rule was forced to false for a record.
type RuleSkip struct {
	Rule   RuleID  `json:"rule"`
	Reason string  `json:"reason"`
	Fields []Field `json:"fields,omitempty"`
}

// Skip reasons.
const (
	SkipMissingField       = "missing field"
	SkipMissingColumn      = "missing column"
	SkipDegenerateBaseline = "degenerate baseline"
	SkipEvaluationError    = "evaluation error"
)

// RulePair is an unordered pair of distinct rules, stored with A < B.
type RulePair struct {
	A RuleID `json:"a"`
	B RuleID `json:"b"`
}

// NewRulePair orders the ids so that A < B.
func NewRulePair(a, b RuleID) (RulePair, error) {
	if !a.Valid() || !b.Valid() {
		return RulePair{}, fmt.Errorf("%w: rule ids must be in 1..%d", ErrInvalidFilter, RuleCount)
	}
	if a == b {
		return RulePair{}, fmt.Errorf("%w: combination needs two distinct rules", ErrInvalidFilter)
	}
	if a > b {
		a, b = b, a
	}
	return RulePair{A: a, B: b}, nil
}

const pairPrefix = "combination_"

// Key returns the stable column name of the pair.
func (p RulePair) Key() string {
	return pairPrefix + strconv.Itoa(int(p.A)) + "_" + strconv.Itoa(int(p.B))
}

// ParsePairKey parses "combination_<a>_<b>" back into a pair.
func ParsePairKey(key string) (RulePair, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(key), pairPrefix)
	if !ok {
		return RulePair{}, fmt.Errorf("%w: unknown combination %q", ErrInvalidFilter, key)
	}
	left, right, ok := strings.Cut(rest, "_")
	if !ok {
		return RulePair{}, fmt.Errorf("%w: unknown combination %q", ErrInvalidFilter, key)
	}
	a, errA := strconv.Atoi(left)
	b, errB := strconv.Atoi(right)
	if errA != nil || errB != nil {
		return RulePair{}, fmt.Errorf("%w: unknown combination %q", ErrInvalidFilter, key)
	}
	return NewRulePair(RuleID(a), RuleID(b))
}
