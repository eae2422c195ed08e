package pipeline

import (
	"fmt"
	"sort"

	"github.com/sells-group/finsheet/internal/model"
)

// Bounds for the plausibility checks below.
const (
	mediumConfidenceLow  = 0.5
	mediumConfidenceHigh = 0.8
	profitTolerance      = 1000.0
	usualYearMin         = 2000
	usualYearMax         = 2030
)

// signedAmountFields are the fields where a negative value is plausible
// but still worth a reviewer's glance.
var signedAmountFields = []string{
	"finSales", "finOperationInc", "finFinancialInc", "finProfit",
	"finBalanceSheet", "finEquity", "finAvailableFunds",
}

// collectInfo runs the plausibility checks on a raw extraction and
// returns the diagnostics to attach as additional information. None of
// the checks block the pipeline.
func collectInfo(res *model.ExtractionResult) []model.InfoNote {
	var notes []model.InfoNote

	for _, name := range sortedKeys(res.FieldConfidence) {
		c := res.FieldConfidence[name]
		if c >= mediumConfidenceLow && c < mediumConfidenceHigh {
			notes = append(notes, model.InfoNote{
				Field:      name,
				Kind:       "medium_confidence",
				Value:      res.Fields[name],
				Reason:     fmt.Sprintf("value extracted with medium confidence (%.0f%%)", c*100),
				Suggestion: "verify this value against the source documents",
			})
		}
	}

	// Net profit should roughly equal operating plus financial income;
	// a large gap usually means non-recurring items were not captured.
	profit, okP := asFloat(res.Fields["finProfit"])
	opInc, okO := asFloat(res.Fields["finOperationInc"])
	finInc, okF := asFloat(res.Fields["finFinancialInc"])
	if okP && okO && okF {
		calculated := opInc + finInc
		if diff := abs(calculated - profit); diff > profitTolerance {
			notes = append(notes, model.InfoNote{
				Field: "finProfit",
				Kind:  "calculation_verification",
				Value: profit,
				Reason: fmt.Sprintf(
					"net profit %.0f differs from operating plus financial income %.0f by %.0f",
					profit, calculated, diff),
				Suggestion: "check for non-recurring items or taxes not captured in finNonRecurring",
			})
		}
	}

	if year, ok := asFloat(res.Fields["finYear"]); ok {
		if year < usualYearMin || year > usualYearMax {
			notes = append(notes, model.InfoNote{
				Field:      "finYear",
				Kind:       "data_validation",
				Value:      res.Fields["finYear"],
				Reason:     fmt.Sprintf("fiscal year %.0f is unusual", year),
				Suggestion: "confirm the year against the source documents",
			})
		}
	}

	for _, name := range signedAmountFields {
		if v, ok := asFloat(res.Fields[name]); ok && v < 0 {
			notes = append(notes, model.InfoNote{
				Field:      name,
				Kind:       "negative_value",
				Value:      res.Fields[name],
				Reason:     fmt.Sprintf("negative value for %s; may be a loss or debt", name),
				Suggestion: "confirm the sign is expected in context",
			})
		}
	}

	return notes
}

// asFloat coerces the numeric types a generator or parser can produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
