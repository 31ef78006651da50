package services

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"gestao/internal/core"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month int // 1-12
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return core.ErrInvalidMonth
	}
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: invalid year %d", core.ErrInvalidInput, p.Year)
	}
	return nil
}

// Key returns the "YYYY-MM" bucket key.
func (p Period) Key() string {
	return MonthKey(p.Year, p.Month)
}

// MonthKey formats a bucket key with a zero-padded month.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// PositionLabel renders an installment's place in its order, e.g. "2/3".
func PositionLabel(seq, count int) string {
	return fmt.Sprintf("%d/%d", seq, count)
}

// BucketItem is one installment as listed in a month bucket.
type BucketItem struct {
	ID           int64       `json:"id"`
	OrderNumber  string      `json:"order_number"`
	CustomerName string      `json:"customer_name"`
	Value        core.Money  `json:"value"`
	Position     string      `json:"position"`
	DueDate      core.Date   `json:"due_date"`
	Status       core.Status `json:"status"`
}

// MonthBucket holds the totals and listing of one month.
type MonthBucket struct {
	Key          string       `json:"key"`
	TotalPending core.Money   `json:"total_pending"`
	TotalSettled core.Money   `json:"total_settled"`
	Items        []BucketItem `json:"items"`
}

// Total is the sum of every installment due in the month.
func (b MonthBucket) Total() core.Money {
	return b.TotalPending.Add(b.TotalSettled)
}

// CashFlow is the monthly grouping of a snapshot of installments.
// It is read-only once built.
type CashFlow struct {
	buckets map[string]*MonthBucket
	keys    []string
}

// Aggregate groups rows by the year and month of their due date.
func Aggregate(rows []core.InstallmentRow) *CashFlow {
	cf := &CashFlow{buckets: make(map[string]*MonthBucket)}

	for _, r := range rows {
		key := MonthKey(r.DueDate.Year(), r.DueDate.Month())
		b, ok := cf.buckets[key]
		if !ok {
			b = &MonthBucket{Key: key}
			cf.buckets[key] = b
			cf.keys = append(cf.keys, key)
		}

		if r.Status.IsSettled() {
			b.TotalSettled = b.TotalSettled.Add(r.Value)
		} else {
			b.TotalPending = b.TotalPending.Add(r.Value)
		}
		b.Items = append(b.Items, BucketItem{
			ID:           r.ID,
			OrderNumber:  r.OrderNumber,
			CustomerName: r.CustomerName,
			Value:        r.Value,
			Position:     PositionLabel(r.Seq, r.InstallmentCount),
			DueDate:      r.DueDate,
			Status:       r.Status,
		})
	}

	for _, b := range cf.buckets {
		slices.SortStableFunc(b.Items, func(x, y BucketItem) int {
			return x.DueDate.Compare(y.DueDate.Time)
		})
	}
	sort.Strings(cf.keys)
	return cf
}

// Month returns a copy of the bucket for p. A month without installments
// yields an empty bucket with zero totals.
func (cf *CashFlow) Month(p Period) MonthBucket {
	key := p.Key()
	b, ok := cf.buckets[key]
	if !ok {
		return MonthBucket{Key: key, Items: []BucketItem{}}
	}
	out := *b
	out.Items = slices.Clone(b.Items)
	return out
}

// Months lists the keys of every month that has installments, ascending.
func (cf *CashFlow) Months() []string {
	return append([]string{}, cf.keys...)
}

// ExportView flattens rows into export rows, keeping input order.
func ExportView(rows []core.InstallmentRow) []core.ExportRow {
	out := make([]core.ExportRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.ExportRow{
			OrderNumber:   r.OrderNumber,
			CustomerName:  r.CustomerName,
			Value:         r.Value,
			PaymentMethod: r.PaymentMethod,
			Position:      PositionLabel(r.Seq, r.InstallmentCount),
			DueDate:       r.DueDate,
			Status:        r.Status,
		})
	}
	return out
}
