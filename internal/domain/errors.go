package domain

import "errors"

var (
	// ErrFetch covers network, DNS and non-200 failures while scraping.
	ErrFetch = errors.New("fetch failed")
	// ErrContentTooShort means the page loaded but yielded no usable text.
	ErrContentTooShort = errors.New("content too short")
	// ErrAnalysis covers LLM call failures.
	ErrAnalysis = errors.New("analysis failed")
	// ErrParse means the LLM response was not a JSON object.
	ErrParse = errors.New("analysis payload not parseable")
	// ErrTimeout is returned when an item exceeds its processing budget.
	ErrTimeout = errors.New("processing budget exceeded")
	// ErrNotAuthenticated is returned by remote backends lacking credentials.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSheetAccess means the spreadsheet is missing or not shared.
	ErrSheetAccess = errors.New("spreadsheet not accessible")
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("article not found")
	// ErrDuplicate is returned when a URL is already tracked by an active record.
	ErrDuplicate = errors.New("article already tracked")
	// ErrInvalidInput marks caller mistakes such as an empty URL.
	ErrInvalidInput = errors.New("invalid input")
)
