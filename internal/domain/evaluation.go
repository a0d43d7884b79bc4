package domain

import (
	"time"
)

// Baseline holds the dataset-wide statistics of the transaction value.
// Mean and StdDev are 0 when undefined so the struct stays JSON-safe.
type Baseline struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`

	// Degenerate is set when the stddev is zero or undefined; deviation
	// based rules are disabled for the run.
	Degenerate bool `json:"degenerate"`
}

// Outlier is the z-score classification of one value.
type Outlier struct {
	Deviation float64 `json:"deviation"`
	Defined   bool    `json:"defined"`
	Atypical  bool    `json:"atypical"`
}

// Evaluation is the complete derived result for one record.
type Evaluation struct {
	Row int `json:"row"`

	Outlier Outlier    `json:"outlier"`
	Rules   RuleVector `json:"rules"`

	RuleCount int  `json:"ruleCount"`
	Alert     bool `json:"alert"`

	// Combinations follow the canonical pair order.
	Combinations []bool `json:"combinations"`

	Skipped []RuleSkip `json:"skipped,omitempty"`
}

// Screening is one evaluation pass over a dataset.
// Table holds the cleaned source rows, aligned with Records and Evaluations.
type Screening struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	AsOf      time.Time `json:"asOf"`

	Table       *Table       `json:"table"`
	Records     []Record     `json:"records"`
	Evaluations []Evaluation `json:"evaluations"`

	Baseline Baseline     `json:"baseline"`
	Dropped  []DroppedRow `json:"dropped,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Summary is the headline view of a screening.
type Summary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	AsOf      string    `json:"asOf"`

	Analyzed int `json:"analyzed"`
	Alerts   int `json:"alerts"`
	Atypical int `json:"atypical"`
	Dropped  int `json:"dropped"`

	Baseline     Baseline       `json:"baseline"`
	FlaggedValue string         `json:"flaggedValue"`
	RuleHits     map[RuleID]int `json:"ruleHits"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// AlertEvent is published for every record that raised an alert.
type AlertEvent struct {
	ScreeningID string   `json:"screeningId"`
	Row         int      `json:"row"`
	ClientID    string   `json:"clientId,omitempty"`
	Value       float64  `json:"value"`
	RuleCount   int      `json:"ruleCount"`
	Rules       []RuleID `json:"rules"`
	Reasons     []string `json:"reasons,omitempty"`
}
