package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/rules"
	"github.com/opensource-finance/laftscreen/internal/tadp"
)

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

// fixture returns a screening of four records with hand-picked rule hits.
func fixture() *domain.Screening {
	type row struct {
		city, channel, segment, onboarded string
		hits                              []domain.RuleID
	}
	rows := []row{
		{"LETICIA", "Crypto", "High", "2024-01-10", []domain.RuleID{1, 8, 15}},
		{"BOGOTA", "Cash", "Low", "2020-05-05", []domain.RuleID{3, 14}},
		{"LETICIA", "Transfer", "Low", "", []domain.RuleID{1}},
		{"", "Check", "", "2024-12-31", []domain.RuleID{3, 14, 18}},
	}

	p := tadp.NewProcessor(nil)
	sc := &domain.Screening{}
	for i, r := range rows {
		rec := domain.Record{Row: i, Value: float64(i)}
		if r.city != "" {
			rec.City = r.city
			rec.Present = rec.Present.Add(domain.FieldCity)
		}
		rec.Channel = r.channel
		rec.Present = rec.Present.Add(domain.FieldChannel)
		if r.segment != "" {
			rec.Segment = r.segment
			rec.Present = rec.Present.Add(domain.FieldSegment)
		}
		if r.onboarded != "" {
			rec.OnboardingDate = date(r.onboarded)
			rec.Present = rec.Present.Add(domain.FieldOnboardingDate)
		}

		var v domain.RuleVector
		for _, id := range r.hits {
			v.Set(id, true)
		}
		sc.Records = append(sc.Records, rec)
		sc.Evaluations = append(sc.Evaluations, p.Process(&tadp.DecisionInput{Row: i, Result: rules.Result{Rules: v}}))
	}
	return sc
}

func pair(a, b domain.RuleID) domain.RulePair {
	p, _ := domain.NewRulePair(a, b)
	return p
}

func TestApply(t *testing.T) {
	sc := fixture()

	tests := []struct {
		name string
		c    Criteria
		want []int
	}{
		{"no filters", Criteria{}, []int{0, 1, 2, 3}},
		{"alerts only", Criteria{AlertsOnly: true}, []int{0, 1, 3}},
		{"single combination", Criteria{Combinations: []domain.RulePair{pair(3, 14)}}, []int{1, 3}},
		{"all of two", Criteria{Combinations: []domain.RulePair{pair(3, 14), pair(14, 18)}, Mode: ModeAll}, []int{3}},
		{"any of two", Criteria{Combinations: []domain.RulePair{pair(1, 8), pair(14, 18)}, Mode: ModeAny}, []int{0, 3}},
		{"city normalized", Criteria{Cities: []string{"Leticia"}}, []int{0, 2}},
		{"channel alias", Criteria{Channels: []string{"Cripto", "cheque"}}, []int{0, 3}},
		{"segment", Criteria{Segments: []string{"Bajo"}}, []int{1, 2}},
		{"onboarded from", Criteria{OnboardedFrom: date("2024-01-10")}, []int{0, 3}},
		{"onboarded range inclusive", Criteria{OnboardedFrom: date("2020-05-05"), OnboardedTo: date("2024-01-10")}, []int{0, 1}},
		{"combined", Criteria{Cities: []string{"LETICIA"}, AlertsOnly: true}, []int{0}},
		{"nothing matches", Criteria{Cities: []string{"MEDELLIN"}}, []int{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Apply(sc, tc.c)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyInvalid(t *testing.T) {
	sc := fixture()

	_, err := Apply(sc, Criteria{Mode: "some"})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	_, err = Apply(sc, Criteria{Combinations: []domain.RulePair{{A: 4, B: 2}}})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	_, err = Apply(sc, Criteria{OnboardedFrom: date("2024-02-01"), OnboardedTo: date("2024-01-01")})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestParse(t *testing.T) {
	pairs, err := ParseCombinations([]string{"combination_3_14", "combination_14_3", "", "combination_1_2"})
	require.NoError(t, err)
	assert.Equal(t, []domain.RulePair{pair(3, 14), pair(1, 2)}, pairs)

	_, err = ParseCombinations([]string{"combination_1_1"})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	m, err := ParseMode("ANY")
	require.NoError(t, err)
	assert.Equal(t, ModeAny, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAll, m)

	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, date("2024-03-01"), d)

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDate("03/01/2024")
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}
