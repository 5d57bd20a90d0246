// Package fiscalweek converts calendar dates into Australian fiscal week
// identifiers. The fiscal year starts on July 1; the identifier format is
// YYYYWW where YYYY is the fiscal year and WW the one-based week number, so
// 202501 is the first week of July 2024.
package fiscalweek

import (
	"context"
	"fmt"
	"time"

	"github.com/quorvus/datachat/tool"
)

const description = `Converts a date into a 'fiscal_week_id' to use as input to the finance_operating_statement table. ` +
	`'fiscal_week_id' is the financial year week number in the format YYYYWW where YYYY is the Australian financial year ` +
	`and WW is the financial year week number; for example 202501 corresponds to the first week of July 2024.`

// Input is the typed argument schema exposed to the model.
type Input struct {
	Date string `json:"date" description:"The input date to be converted, in YYYY-MM-DD format."`
}

// FiscalYear returns the Australian fiscal year a date belongs to: dates from
// July onward belong to the following calendar year's fiscal year.
func FiscalYear(d time.Time) int {
	if d.Month() >= time.July {
		return d.Year() + 1
	}
	return d.Year()
}

// FiscalWeek returns the one-based week number within the fiscal year,
// counted in whole seven-day blocks from July 1.
func FiscalWeek(d time.Time) int {
	start := fiscalYearStart(d)
	days := int(d.Sub(start).Hours() / 24)
	return days/7 + 1
}

// FiscalWeekID renders the YYYYWW identifier for a date.
func FiscalWeekID(d time.Time) string {
	return fmt.Sprintf("%d%02d", FiscalYear(d), FiscalWeek(d))
}

func fiscalYearStart(d time.Time) time.Time {
	year := d.Year()
	if d.Month() < time.July {
		year--
	}
	return time.Date(year, time.July, 1, 0, 0, 0, 0, d.Location())
}

// New wraps the conversion as a schema validated tool taking a YYYY-MM-DD
// date string.
func New() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct("fiscal_week", description, Input{},
		func(_ context.Context, args map[string]any) (any, error) {
			raw, _ := args["date"].(string)
			d, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return nil, tool.NewToolError("fiscal_week",
					fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw), tool.CodeValidation)
			}
			return tool.Output{Success: true, Results: FiscalWeekID(d)}, nil
		})
}
