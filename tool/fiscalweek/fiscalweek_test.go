package fiscalweek

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quorvus/datachat/tool"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFiscalWeekID(t *testing.T) {
	cases := []struct {
		d    time.Time
		want string
	}{
		{date(2024, time.July, 1), "202501"},  // first day of FY2025
		{date(2024, time.July, 7), "202501"},  // still week one
		{date(2024, time.July, 8), "202502"},  // second week
		{date(2024, time.June, 30), "202453"}, // last week of FY2024 (leap year span)
		{date(2023, time.June, 30), "202353"},
		{date(2025, time.January, 15), "202529"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FiscalWeekID(tc.d), "date %s", tc.d.Format("2006-01-02"))
	}
}

func TestFiscalYearBoundary(t *testing.T) {
	assert.Equal(t, 2024, FiscalYear(date(2024, time.June, 30)))
	assert.Equal(t, 2025, FiscalYear(date(2024, time.July, 1)))
	assert.Equal(t, 2025, FiscalYear(date(2024, time.December, 31)))
	assert.Equal(t, 2025, FiscalYear(date(2025, time.January, 1)))
}

func TestTool_Call(t *testing.T) {
	fw := New()

	out, err := fw.Call(context.Background(), map[string]any{"date": "2024-07-01"})
	assert.NoError(t, err)
	result := out.(tool.Output)
	assert.True(t, result.Success)
	assert.Equal(t, "202501", result.Results)
}

func TestTool_RejectsMalformedDate(t *testing.T) {
	fw := New()

	_, err := fw.Call(context.Background(), map[string]any{"date": "01/07/2024"})
	var toolErr *tool.ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, tool.CodeValidation, toolErr.Code)
	}

	// Missing date fails schema validation before the function runs.
	_, err = fw.Call(context.Background(), map[string]any{})
	assert.Error(t, err)
}
