package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold strips diacritics: "Crédito" -> "Credito", "CARREÑO" -> "CARRENO".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// HeaderKey normalizes a column header for alias matching: diacritics
// removed, lower case, runs of spaces, underscores and dashes collapsed.
func HeaderKey(h string) string {
	h = strings.ToLower(fold(strings.TrimSpace(h)))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	}), " ")
}

// categoryAliases maps folded lower-case source values to canonical values.
var categoryAliases = map[string]string{
	// PEP flag
	"si":  "Yes",
	"yes": "Yes",
	"no":  "No",

	// Payment channel
	"cripto":        "Crypto",
	"crypto":        "Crypto",
	"cheque":        "Check",
	"check":         "Check",
	"transferencia": "Transfer",
	"transfer":      "Transfer",
	"efectivo":      "Cash",
	"cash":          "Cash",

	// Segment
	"alto":   "High",
	"high":   "High",
	"medio":  "Medium",
	"medium": "Medium",
	"bajo":   "Low",
	"low":    "Low",

	// Transaction class
	"credito": "Credit",
	"credit":  "Credit",
	"debito":  "Debit",
	"debit":   "Debit",
}

// NormalizeCategory maps a categorical cell onto the canonical vocabulary.
// Unknown values are returned trimmed.
func NormalizeCategory(v string) string {
	v = strings.TrimSpace(v)
	if canon, ok := categoryAliases[strings.ToLower(fold(v))]; ok {
		return canon
	}
	return v
}

// NormalizeCity folds a city name to upper case without diacritics.
func NormalizeCity(v string) string {
	return strings.Join(strings.Fields(strings.ToUpper(fold(v))), " ")
}
