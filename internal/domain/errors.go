package domain

import "errors"

var (
	// ErrIngestion is the root of all input file errors.
	ErrIngestion = errors.New("ingestion failed")

	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrEmptyInput         = errors.New("input has no header row")
	ErrMissingValueColumn = errors.New("transaction value column not found")

	ErrNotFound      = errors.New("record not found")
	ErrInvalidFilter = errors.New("invalid filter")
)
