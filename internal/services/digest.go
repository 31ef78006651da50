package services

import (
	"gestao/internal/core"
)

const DefaultLookaheadDays = 7

// Digest lists the pending installments that need attention on a given day.
type Digest struct {
	AsOf          core.Date
	LookaheadDays int
	Overdue       []BucketItem
	Upcoming      []BucketItem
	TotalOverdue  core.Money
	TotalUpcoming core.Money
	Month         MonthBucket
}

// Empty reports whether nothing is overdue or coming due.
func (d Digest) Empty() bool {
	return len(d.Overdue) == 0 && len(d.Upcoming) == 0
}

// BuildDigest selects pending installments due before today (overdue) or
// within lookahead days from today inclusive (upcoming). Both lists are
// ordered by due date. Month is the bucket of today's month.
func BuildDigest(rows []core.InstallmentRow, today core.Date, lookahead int) Digest {
	if lookahead < 0 {
		lookahead = 0
	}
	horizon := core.DateOf(today.AddDate(0, 0, lookahead))

	cf := Aggregate(rows)
	d := Digest{
		AsOf:          today,
		LookaheadDays: lookahead,
		Overdue:       []BucketItem{},
		Upcoming:      []BucketItem{},
		Month:         cf.Month(Period{Year: today.Year(), Month: today.Month()}),
	}

	for _, key := range cf.Months() {
		for _, it := range cf.buckets[key].Items {
			if it.Status.IsSettled() {
				continue
			}
			switch {
			case it.DueDate.Before(today):
				d.Overdue = append(d.Overdue, it)
				d.TotalOverdue = d.TotalOverdue.Add(it.Value)
			case !horizon.Before(it.DueDate):
				d.Upcoming = append(d.Upcoming, it)
				d.TotalUpcoming = d.TotalUpcoming.Add(it.Value)
			}
		}
	}
	return d
}
