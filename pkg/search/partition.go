package search

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// PartitionKeys are the object keys that may carry a partition number, in
// priority order. Different API versions use different names.
var PartitionKeys = []string{"partition_num", "partition", "page", "number"}

// ResolvePartitions turns raw partition_info entries into the ordered set
// of partition numbers to fetch.
//
// An entry is either a number or an object holding one of PartitionKeys.
// For objects the first key with an integer value wins; an object without
// any yields 0. Scalars that are not integers are dropped. Negative numbers
// are dropped, the rest deduplicated and sorted. An empty result becomes [0].
func ResolvePartitions(entries []any) []int {
	nums := make([]int, 0, len(entries))
	for _, entry := range entries {
		if n, ok := partitionNumber(entry); ok {
			nums = append(nums, n)
		}
	}
	return normalizePartitions(nums)
}

func partitionNumber(entry any) (int, bool) {
	obj, isObject := entry.(map[string]any)
	if !isObject {
		return toInt(entry)
	}
	for _, key := range PartitionKeys {
		v, present := obj[key]
		if !present || v == nil {
			continue
		}
		if n, ok := toInt(v); ok {
			return n, true
		}
	}
	return 0, true
}

// normalizePartitions filters negatives, deduplicates and sorts.
func normalizePartitions(nums []int) []int {
	seen := make(map[int]bool, len(nums))
	out := make([]int, 0, len(nums))
	for _, n := range nums {
		if n < 0 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return []int{0}
	}
	sort.Ints(out)
	return out
}

// toInt converts a decoded JSON scalar to an int. Fractional numbers are
// truncated toward zero; numeric strings are accepted.
func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return intFrom64(i)
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return intFromFloat(f)
	case float64:
		return intFromFloat(t)
	case int:
		return t, true
	case int64:
		return intFrom64(t)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return intFrom64(i)
	default:
		return 0, false
	}
}

func intFrom64(i int64) (int, bool) {
	if i > math.MaxInt32 || i < math.MinInt32 {
		return 0, false
	}
	return int(i), true
}

func intFromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return intFrom64(int64(math.Trunc(f)))
}
