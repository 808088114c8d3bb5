// Package runstate keeps cross-process state for sync runs in Redis: a
// lease that stops two processes from running the same search at once,
// and a record of the last run's outcome.
package runstate

import (
	"slices"
	"strconv"
	"strings"
)

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "fever:sync"

// Key identifies a search by its normalized filter.
type Key struct {
	// PlanIDs are the normalized plan identifiers; order does not matter.
	PlanIDs []int64

	// DateField, DateFrom and DateTo are the optional date filter.
	DateField string
	DateFrom  string
	DateTo    string
}

// String generates a deterministic key string.
// Format: fever:sync:plans=1,2:field=created:from=2024-01-01:to=2024-01-31
//
// Empty date components are omitted.
func (k Key) String() string {
	ids := slices.Clone(k.PlanIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	plans := make([]string, len(ids))
	for i, id := range ids {
		plans[i] = strconv.FormatInt(id, 10)
	}

	parts := []string{KeyPrefix, "plans=" + strings.Join(plans, ",")}
	if k.DateField != "" {
		parts = append(parts, "field="+k.DateField)
	}
	if k.DateFrom != "" {
		parts = append(parts, "from="+k.DateFrom)
	}
	if k.DateTo != "" {
		parts = append(parts, "to="+k.DateTo)
	}
	return strings.Join(parts, ":")
}

func (k Key) lockKey() string  { return k.String() + ":lock" }
func (k Key) stateKey() string { return k.String() + ":last" }
