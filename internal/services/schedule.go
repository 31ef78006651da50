// Package services provides business logic and orchestration services.
//
// This file holds the installment generator. How an order total is split
// across installments is a strategy selected by name, the same way
// frequency checkers were registered for recurring entries.

package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gestao/internal/core"
)

// RoundingPolicy names an apportioning strategy.
type RoundingPolicy string

const (
	// RoundEven gives every installment total/count rounded to the cent.
	// The installments may not sum to the total.
	RoundEven RoundingPolicy = "even"
	// RoundLast gives the final installment whatever the others leave over.
	RoundLast RoundingPolicy = "last"
)

// DefaultRoundingPolicy keeps the sum of installments equal to the order total.
const DefaultRoundingPolicy = RoundLast

// Apportioner splits a total into count installment values.
type Apportioner interface {
	Split(total core.Money, count int) []core.Money
}

// EvenSplit implements Apportioner with identical shares.
type EvenSplit struct{}

func (EvenSplit) Split(total core.Money, count int) []core.Money {
	share := shareOf(total, count)
	out := make([]core.Money, count)
	for i := range out {
		out[i] = share
	}
	return out
}

// LastAbsorbsRemainder implements Apportioner with total/count truncated to
// the cent for every installment except the last, which takes the remainder
// so the values add up to total.
type LastAbsorbsRemainder struct{}

func (LastAbsorbsRemainder) Split(total core.Money, count int) []core.Money {
	share := core.Money{Cents: total.Cents / int64(count)}
	out := make([]core.Money, count)
	for i := 0; i < count-1; i++ {
		out[i] = share
	}
	out[count-1] = core.Money{Cents: total.Cents - share.Cents*int64(count-1)}
	return out
}

// shareOf is total/count rounded half away from zero to whole cents.
func shareOf(total core.Money, count int) core.Money {
	q := decimal.NewFromInt(total.Cents).DivRound(decimal.NewFromInt(int64(count)), 0)
	return core.Money{Cents: q.IntPart()}
}

var apportioners = map[RoundingPolicy]Apportioner{
	RoundEven: EvenSplit{},
	RoundLast: LastAbsorbsRemainder{},
}

// GetApportioner returns the strategy registered for policy.
func GetApportioner(policy RoundingPolicy) (Apportioner, error) {
	a, ok := apportioners[policy]
	if !ok {
		return nil, fmt.Errorf("unknown rounding policy: %s", policy)
	}
	return a, nil
}

// ScheduleLine is one generated installment before it is stored.
type ScheduleLine struct {
	Seq     int
	Value   core.Money
	DueDate core.Date
}

// Generator produces installment schedules. The zero value splits evenly.
type Generator struct {
	apportioner Apportioner
}

// NewGenerator returns a generator using the named rounding policy.
func NewGenerator(policy RoundingPolicy) (*Generator, error) {
	a, err := GetApportioner(policy)
	if err != nil {
		return nil, err
	}
	return &Generator{apportioner: a}, nil
}

// Generate splits total into count installments, the first due on first and
// each following one calendar month later. Invalid input is reported before
// any line is produced.
func (g *Generator) Generate(total core.Money, count int, first core.Date) ([]ScheduleLine, error) {
	if count < 1 || count > core.MaxInstallmentCount {
		return nil, core.ErrInvalidInstallmentCount
	}
	if err := total.Validate(); err != nil {
		return nil, err
	}
	if err := first.Validate(); err != nil {
		return nil, err
	}

	var a Apportioner = EvenSplit{}
	if g != nil && g.apportioner != nil {
		a = g.apportioner
	}

	values := a.Split(total, count)
	lines := make([]ScheduleLine, count)
	for i := 0; i < count; i++ {
		lines[i] = ScheduleLine{
			Seq:     i + 1,
			Value:   values[i],
			DueDate: AddMonths(first, i),
		}
	}
	return lines, nil
}

// AddMonths moves d by n calendar months. The day is clamped to the length
// of the target month, so Jan 31 + 1 is Feb 28 (or 29), never March.
func AddMonths(d core.Date, n int) core.Date {
	m0 := d.Month() - 1 + n
	year := d.Year() + floorDiv(m0, 12)
	month := m0 - floorDiv(m0, 12)*12 + 1

	day := d.Day()
	lastDayOfMonth := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDayOfMonth {
		day = lastDayOfMonth
	}
	return core.NewDate(year, month, day)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
