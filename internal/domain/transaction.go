// Package domain defines the core types and interfaces for laftscreen.
package domain

import (
	"strings"
	"time"
)

// Field identifies one typed field of a transaction record.
type Field int

// Declared record fields, in schema order.
const (
	FieldClientID Field = iota
	FieldValue
	FieldAssets
	FieldLiabilities
	FieldIncome
	FieldExpenses
	FieldNetFlowBalance
	FieldPEP
	FieldChannel
	FieldSegment
	FieldClass
	FieldOccupationCode
	FieldCity
	FieldIndustryCode
	FieldProduct
	FieldOnboardingDate

	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldClientID:       "client_id",
	FieldValue:          "transaction_value",
	FieldAssets:         "assets",
	FieldLiabilities:    "liabilities",
	FieldIncome:         "income",
	FieldExpenses:       "expenses",
	FieldNetFlowBalance: "net_flow_balance",
	FieldPEP:            "pep",
	FieldChannel:        "channel",
	FieldSegment:        "segment",
	FieldClass:          "transaction_class",
	FieldOccupationCode: "occupation_code",
	FieldCity:           "city",
	FieldIndustryCode:   "industry_code",
	FieldProduct:        "product",
	FieldOnboardingDate: "onboarding_date",
}

// AllFields returns every declared field in schema order.
func AllFields() []Field {
	fields := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		fields = append(fields, f)
	}
	return fields
}

// String returns the canonical snake_case name of the field.
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fieldNames[f]
}

// ParseField resolves a canonical field name.
func ParseField(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range fieldNames {
		if n == name {
			return Field(f), true
		}
	}
	return 0, false
}

// FieldSet is a bitset of fields.
type FieldSet uint32

// NewFieldSet builds a set from the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	var s FieldSet
	for _, f := range fields {
		s = s.Add(f)
	}
	return s
}

// Add returns the set with f included.
func (s FieldSet) Add(f Field) FieldSet {
	return s | 1<<uint(f)
}

// Has reports whether f is in the set.
func (s FieldSet) Has(f Field) bool {
	return s&(1<<uint(f)) != 0
}

// Missing returns the fields of required that are not in s, in schema order.
func (s FieldSet) Missing(required FieldSet) []Field {
	var missing []Field
	for f := Field(0); f < fieldCount; f++ {
		if required.Has(f) && !s.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Record is the typed view of one input row.
// Only fields in Present carry meaningful values.
type Record struct {
	// Row is the zero-based data row index in the source table.
	Row int `json:"row"`

	ClientID string  `json:"clientId,omitempty"`
	Value    float64 `json:"value"`

	// Balance sheet and flow amounts
	Assets         float64 `json:"assets,omitempty"`
	Liabilities    float64 `json:"liabilities,omitempty"`
	Income         float64 `json:"income,omitempty"`
	Expenses       float64 `json:"expenses,omitempty"`
	NetFlowBalance float64 `json:"netFlowBalance,omitempty"`

	// Normalized categories
	PEP     string `json:"pep,omitempty"`
	Channel string `json:"channel,omitempty"`
	Segment string `json:"segment,omitempty"`
	Class   string `json:"class,omitempty"`
	City    string `json:"city,omitempty"`
	Product string `json:"product,omitempty"`

	OccupationCode float64   `json:"occupationCode,omitempty"`
	IndustryCode   float64   `json:"industryCode,omitempty"`
	OnboardingDate time.Time `json:"onboardingDate,omitempty"`

	Present FieldSet     `json:"present"`
	Issues  []FieldIssue `json:"issues,omitempty"`
}

// Has reports whether the record carries a usable value for f.
func (r *Record) Has(f Field) bool {
	return r.Present.Has(f)
}

// FieldIssue records a cell that could not be coerced to its declared type.
type FieldIssue struct {
	Field Field  `json:"field"`
	Raw   string `json:"raw"`
	Err   string `json:"error"`
}

// DroppedRow is a source row excluded from the screening because its
// transaction value was missing or not numeric.
type DroppedRow struct {
	Row    int    `json:"row"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}
