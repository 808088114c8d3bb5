package search

import (
	"errors"
	"strconv"
	"strings"
)

// Filter selects the orders a search returns.
type Filter struct {
	// PlanIDs are raw plan identifiers. Entries that are not positive
	// decimal integers are dropped when the search is submitted.
	PlanIDs []string

	// DateField names the date column the bounds apply to,
	// e.g. "CREATED_DATE_UTC".
	DateField string

	// DateFrom and DateTo are inclusive ISO dates, e.g. "2024-01-01".
	DateFrom string
	DateTo   string
}

var (
	errNoPlanIDs         = errors.New("no valid plan ids")
	errDateBoundsNoField = errors.New("date bounds require a date field")
)

// ParsePlanIDs splits a comma-separated plan id list. Blank entries are
// dropped; validation happens on submit.
func ParsePlanIDs(csv string) []string {
	var ids []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

// NormalizedPlanIDs returns the valid plan ids in order of first
// appearance with duplicates removed.
func (f Filter) NormalizedPlanIDs() []int64 {
	seen := make(map[int64]bool, len(f.PlanIDs))
	ids := make([]int64, 0, len(f.PlanIDs))
	for _, raw := range f.PlanIDs {
		raw = strings.TrimSpace(raw)
		if !isDigits(raw) {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// Validate checks the filter can produce a meaningful search.
func (f Filter) Validate() error {
	if len(f.NormalizedPlanIDs()) == 0 {
		return errNoPlanIDs
	}
	hasBound := strings.TrimSpace(f.DateFrom) != "" || strings.TrimSpace(f.DateTo) != ""
	if hasBound && strings.TrimSpace(f.DateField) == "" {
		return errDateBoundsNoField
	}
	return nil
}

// submitRequest is the search request body. Optional keys are omitted
// when empty.
type submitRequest struct {
	PlanIDs   []int64 `json:"plan_ids"`
	DateField string  `json:"date_field,omitempty"`
	DateFrom  string  `json:"date_from,omitempty"`
	DateTo    string  `json:"date_to,omitempty"`
}

func (f Filter) request() submitRequest {
	return submitRequest{
		PlanIDs:   f.NormalizedPlanIDs(),
		DateField: strings.TrimSpace(f.DateField),
		DateFrom:  strings.TrimSpace(f.DateFrom),
		DateTo:    strings.TrimSpace(f.DateTo),
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
