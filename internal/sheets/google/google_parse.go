package google

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"gestao/internal/core"
)

// parseExport converts a values matrix (as returned by the Sheets API with
// UNFORMATTED_VALUE) back into export rows. The header row and rows that do
// not carry a valid amount, date and status are skipped.
func parseExport(values [][]interface{}) []core.ExportRow {
	out := make([]core.ExportRow, 0, len(values))
	for i, raw := range values {
		row := toStrings(raw)
		if i == 0 && isHeader(row) {
			continue
		}
		if len(row) < len(core.ExportHeaders) {
			continue
		}
		cents, ok := parseCents(safeGet(row, 2))
		if !ok {
			continue
		}
		due, err := core.ParseDate(safeGet(row, 5))
		if err != nil {
			continue
		}
		status, err := core.ParseStatus(safeGet(row, 6))
		if err != nil {
			continue
		}
		out = append(out, core.ExportRow{
			OrderNumber:   safeGet(row, 0),
			CustomerName:  safeGet(row, 1),
			Value:         core.Money{Cents: cents},
			PaymentMethod: safeGet(row, 3),
			Position:      safeGet(row, 4),
			DueDate:       due,
			Status:        status,
		})
	}
	return out
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(row[0], core.ExportHeaders[0])
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			// fmt would switch to exponent notation for large amounts
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseCents reads a non-negative amount with dot or comma decimals.
func parseCents(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return d.Round(2).Shift(2).IntPart(), true
}
