// Package filter selects the records of a screening an analyst wants to see.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/ingest"
	"github.com/opensource-finance/laftscreen/internal/rules"
)

// Mode combines several combination filters.
type Mode string

const (
	// ModeAll keeps records satisfying every selected combination.
	ModeAll Mode = "all"
	// ModeAny keeps records satisfying at least one.
	ModeAny Mode = "any"
)

// ParseMode parses "all" or "any". Empty means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeAny:
		return ModeAny, nil
	}
	return "", fmt.Errorf("%w: mode must be %q or %q, got %q", domain.ErrInvalidFilter, ModeAll, ModeAny, s)
}

// Criteria is a conjunction of filters. Zero-valued fields do not filter.
type Criteria struct {
	Combinations []domain.RulePair
	Mode         Mode

	Cities   []string
	Channels []string
	Segments []string

	// Inclusive onboarding date bounds.
	OnboardedFrom time.Time
	OnboardedTo   time.Time

	AlertsOnly bool
}

// ParseCombinations parses combination keys such as "combination_3_14".
// Duplicates are removed.
func ParseCombinations(keys []string) ([]domain.RulePair, error) {
	var pairs []domain.RulePair
	seen := make(map[domain.RulePair]bool, len(keys))
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		p, err := domain.ParsePairKey(k)
		if err != nil {
			return nil, err
		}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// ParseDate parses an inclusive date bound. Empty yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", domain.ErrInvalidFilter, s)
	}
	return t, nil
}

// Validate checks the criteria for contradictions.
func (c *Criteria) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	for _, p := range c.Combinations {
		if rules.PairIndex(p) < 0 {
			return fmt.Errorf("%w: unknown combination %d/%d", domain.ErrInvalidFilter, p.A, p.B)
		}
	}
	if !c.OnboardedFrom.IsZero() && !c.OnboardedTo.IsZero() && c.OnboardedTo.Before(c.OnboardedFrom) {
		return fmt.Errorf("%w: onboarding range ends before it starts", domain.ErrInvalidFilter)
	}
	return nil
}

type matcher struct {
	c        Criteria
	cities   map[string]bool
	channels map[string]bool
	segments map[string]bool
	to       time.Time
}

func newMatcher(c Criteria) *matcher {
	m := &matcher{
		c:        c,
		cities:   valueSet(c.Cities, ingest.NormalizeCity),
		channels: valueSet(c.Channels, ingest.NormalizeCategory),
		segments: valueSet(c.Segments, ingest.NormalizeCategory),
	}
	if !c.OnboardedTo.IsZero() {
		// The bound is a calendar day; timestamps on that day are inside.
		m.to = c.OnboardedTo.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
	return m
}

func valueSet(values []string, normalize func(string) string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[normalize(v)] = true
	}
	return set
}

// Apply returns the positions of the screening's records that satisfy c,
// in dataset order.
func Apply(sc *domain.Screening, c Criteria) ([]int, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Mode == "" {
		c.Mode = ModeAll
	}

	m := newMatcher(c)
	positions := make([]int, 0, len(sc.Evaluations))
	for i := range sc.Evaluations {
		if m.match(&sc.Records[i], &sc.Evaluations[i]) {
			positions = append(positions, i)
		}
	}
	return positions, nil
}

func (m *matcher) match(rec *domain.Record, e *domain.Evaluation) bool {
	if m.c.AlertsOnly && !e.Alert {
		return false
	}
	if !m.combinations(e) {
		return false
	}
	if m.cities != nil && !(rec.Has(domain.FieldCity) && m.cities[rec.City]) {
		return false
	}
	if m.channels != nil && !(rec.Has(domain.FieldChannel) && m.channels[rec.Channel]) {
		return false
	}
	if m.segments != nil && !(rec.Has(domain.FieldSegment) && m.segments[rec.Segment]) {
		return false
	}
	if !m.c.OnboardedFrom.IsZero() || !m.to.IsZero() {
		if !rec.Has(domain.FieldOnboardingDate) {
			return false
		}
		if !m.c.OnboardedFrom.IsZero() && rec.OnboardingDate.Before(m.c.OnboardedFrom) {
			return false
		}
		if !m.to.IsZero() && !rec.OnboardingDate.Before(m.to) {
			return false
		}
	}
	return true
}

func (m *matcher) combinations(e *domain.Evaluation) bool {
	if len(m.c.Combinations) == 0 {
		return true
	}
	for _, p := range m.c.Combinations {
		hit := rules.Combination(e.Combinations, p)
		switch {
		case m.c.Mode == ModeAny && hit:
			return true
		case m.c.Mode == ModeAll && !hit:
			return false
		}
	}
	return m.c.Mode == ModeAll
}
