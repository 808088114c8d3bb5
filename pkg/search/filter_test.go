package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlanIDs(t *testing.T) {
	got := ParsePlanIDs("420002, 474974,,416569 , abc,")
	assert.Equal(t, []string{"420002", "474974", "416569", "abc"}, got)
	assert.Nil(t, ParsePlanIDs("  "))
}

func TestNormalizedPlanIDs(t *testing.T) {
	f := Filter{PlanIDs: []string{"3", " 1 ", "x7", "-2", "0", "3", "", "1.5", "99999999999999999999", "2"}}
	assert.Equal(t, []int64{3, 1, 2}, f.NormalizedPlanIDs())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr error
	}{
		{"plan ids only", Filter{PlanIDs: []string{"1"}}, nil},
		{"full date filter", Filter{PlanIDs: []string{"1"}, DateField: "CREATED_DATE_UTC", DateFrom: "2024-01-01", DateTo: "2024-12-31"}, nil},
		{"field without bounds", Filter{PlanIDs: []string{"1"}, DateField: "CREATED_DATE_UTC"}, nil},
		{"no plan ids", Filter{}, errNoPlanIDs},
		{"only invalid plan ids", Filter{PlanIDs: []string{"abc", "-1"}}, errNoPlanIDs},
		{"from without field", Filter{PlanIDs: []string{"1"}, DateFrom: "2024-01-01"}, errDateBoundsNoField},
		{"to without field", Filter{PlanIDs: []string{"1"}, DateTo: "2024-01-01", DateField: "  "}, errDateBoundsNoField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.filter.Validate())
		})
	}
}

func TestRequestBody_OmitsEmptyOptionalKeys(t *testing.T) {
	b, err := json.Marshal(Filter{PlanIDs: []string{"5", "6"}}.request())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"plan_ids":[5,6]}`, string(b))

	b, err = json.Marshal(Filter{PlanIDs: []string{"5"}, DateField: "CREATED_DATE_UTC", DateTo: "2025-10-09"}.request())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"plan_ids":[5],"date_field":"CREATED_DATE_UTC","date_to":"2025-10-09"}`, string(b))
}
