package rules

import "github.com/opensource-finance/laftscreen/internal/domain"

// BuiltinRules returns the fixed rule bank, rules 1 through 20.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:             1,
			Name:           "High positive deviation",
			Description:    "Value more than two standard deviations above the mean.",
			Expression:     `deviation > 2.0`,
			DeviationBased: true,
		},
		{
			ID:             2,
			Name:           "High negative deviation",
			Description:    "Value more than two standard deviations below the mean.",
			Expression:     `deviation < -2.0`,
			DeviationBased: true,
		},
		{
			ID:             3,
			Name:           "Large assets, above-normal value",
			Description:    "Assets above 50,000,000 and value above mean plus one stddev.",
			Expression:     `assets > 50000000.0 && v > mean + stddev`,
			Requires:       []domain.Field{domain.FieldAssets},
			DeviationBased: true,
		},
		{
			ID:          4,
			Name:        "Liabilities exceed assets, below-mean value",
			Description: "Liabilities greater than assets and value below the mean.",
			Expression:  `liabilities > assets && v < mean`,
			Requires:    []domain.Field{domain.FieldLiabilities, domain.FieldAssets},
		},
		{
			ID:             5,
			Name:           "Surplus income, high value",
			Description:    "Income greater than expenses and value above mean plus 1.5 stddev.",
			Expression:     `income > expenses && v > mean + 1.5 * stddev`,
			Requires:       []domain.Field{domain.FieldIncome, domain.FieldExpenses},
			DeviationBased: true,
		},
		{
			ID:             6,
			Name:           "Negative net flow, above-mean value",
			Description:    "Negative net flow balance and value above the mean.",
			Expression:     `net_flow_balance < 0.0 && v > mean`,
			Requires:       []domain.Field{domain.FieldNetFlowBalance},
			DeviationBased: true,
		},
		{
			ID:          7,
			Name:        "PEP with atypical transaction",
			Description: "Politically exposed person with an atypical transaction.",
			Expression:  `pep == "Yes" && is_atypical`,
			Requires:    []domain.Field{domain.FieldPEP},
		},
		{
			ID:             8,
			Name:           "Crypto channel, very high value",
			Description:    "Paid through crypto with value above mean plus two stddev.",
			Expression:     `channel == "Crypto" && v > mean + 2.0 * stddev`,
			Requires:       []domain.Field{domain.FieldChannel},
			DeviationBased: true,
		},
		{
			ID:             9,
			Name:           "High segment, low value",
			Description:    "High segment client with value below mean minus one stddev.",
			Expression:     `segment == "High" && v < mean - stddev`,
			Requires:       []domain.Field{domain.FieldSegment},
			DeviationBased: true,
		},
		{
			ID:          10,
			Name:        "Credit by check, above-mean value",
			Description: "Credit transaction paid by check with value above the mean.",
			Expression:  `tx_class == "Credit" && channel == "Check" && v > mean`,
			Requires:    []domain.Field{domain.FieldClass, domain.FieldChannel},
		},
		{
			ID:          11,
			Name:        "High income, repeated atypical activity",
			Description: "Income above 30,000,000 and more than one atypical transaction for the client.",
			Expression:  `income > 30000000.0 && atypical_count > 1`,
			Requires:    []domain.Field{domain.FieldIncome, domain.FieldClientID},
		},
		{
			ID:          12,
			Name:        "High expenses by transfer",
			Description: "Expenses above 40,000,000 paid by transfer.",
			Expression:  `expenses > 40000000.0 && channel == "Transfer"`,
			Requires:    []domain.Field{domain.FieldExpenses, domain.FieldChannel},
		},
		{
			ID:          13,
			Name:        "Occupation 8 using crypto",
			Description: "Occupation code 8 paying through crypto.",
			Expression:  `occupation_code == 8.0 && channel == "Crypto"`,
			Requires:    []domain.Field{domain.FieldOccupationCode, domain.FieldChannel},
		},
		{
			ID:          14,
			Name:        "Frequent atypical activity",
			Description: "More than three atypical transactions for the client.",
			Expression:  `atypical_count > 3`,
			Requires:    []domain.Field{domain.FieldClientID},
		},
		{
			ID:             15,
			Name:           "High-risk city, very high value",
			Description:    "Transaction in a high-risk municipality with value above mean plus two stddev.",
			Expression:     `city in ["ABEJORRAL", "PUERTO CARRENO", "LETICIA"] && v > mean + 2.0 * stddev`,
			Requires:       []domain.Field{domain.FieldCity},
			DeviationBased: true,
		},
		{
			ID:          16,
			Name:        "Positive net flow on debit",
			Description: "Positive net flow balance on a debit transaction.",
			Expression:  `net_flow_balance > 0.0 && tx_class == "Debit"`,
			Requires:    []domain.Field{domain.FieldNetFlowBalance, domain.FieldClass},
		},
		{
			ID:             17,
			Name:           "Low segment, high value",
			Description:    "Low segment client with value above mean plus 1.5 stddev.",
			Expression:     `segment == "Low" && v > mean + 1.5 * stddev`,
			Requires:       []domain.Field{domain.FieldSegment},
			DeviationBased: true,
		},
		{
			ID:          18,
			Name:        "Recently onboarded client",
			Description: "Client onboarded less than 365 days before the evaluation date.",
			Expression:  `onboarding_age_days < 365.0`,
			Requires:    []domain.Field{domain.FieldOnboardingDate},
		},
		{
			ID:              19,
			Name:            "Multiple products",
			Description:     "Client holds more than one distinct product.",
			Expression:      `distinct_products > 1`,
			Requires:        []domain.Field{domain.FieldClientID},
			DatasetRequires: []domain.Field{domain.FieldProduct},
		},
		{
			ID:             20,
			Name:           "High-risk industry, atypical transaction",
			Description:    "CIIU 8639 or 6275 with an atypical transaction.",
			Expression:     `industry_code in [8639.0, 6275.0] && is_atypical`,
			Requires:       []domain.Field{domain.FieldIndustryCode},
			DeviationBased: true,
		},
	}
}
