package services

import (
	"errors"
	"testing"

	"gestao/internal/core"
)

func row(id int64, order, customer string, cents int64, seq, count int, due core.Date, status core.Status) core.InstallmentRow {
	return core.InstallmentRow{
		Installment: core.Installment{
			ID:      id,
			Seq:     seq,
			Value:   core.Money{Cents: cents},
			DueDate: due,
			Status:  status,
		},
		OrderNumber:      order,
		CustomerName:     customer,
		PaymentMethod:    "Pix",
		InstallmentCount: count,
	}
}

func TestAggregate_MonthTotals(t *testing.T) {
	rows := []core.InstallmentRow{
		row(2, "P-2", "Bia", 7000, 1, 1, core.NewDate(2024, 3, 20), core.StatusSettled),
		row(1, "P-1", "Ana", 5000, 2, 3, core.NewDate(2024, 3, 5), core.StatusPending),
		row(3, "P-1", "Ana", 5000, 3, 3, core.NewDate(2024, 4, 5), core.StatusPending),
	}

	cf := Aggregate(rows)
	mar := cf.Month(Period{Year: 2024, Month: 3})

	if mar.Key != "2024-03" {
		t.Errorf("Key = %q, want 2024-03", mar.Key)
	}
	if mar.TotalPending.Cents != 5000 {
		t.Errorf("TotalPending = %d, want 5000", mar.TotalPending.Cents)
	}
	if mar.TotalSettled.Cents != 7000 {
		t.Errorf("TotalSettled = %d, want 7000", mar.TotalSettled.Cents)
	}
	if mar.Total().Cents != 12000 {
		t.Errorf("Total = %d, want 12000", mar.Total().Cents)
	}
	if len(mar.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(mar.Items))
	}
	if mar.Items[0].ID != 1 || mar.Items[1].ID != 2 {
		t.Errorf("items not ordered by due date: %+v", mar.Items)
	}
	if mar.Items[0].Position != "2/3" {
		t.Errorf("Position = %q, want 2/3", mar.Items[0].Position)
	}
}

func TestAggregate_EmptyMonth(t *testing.T) {
	cf := Aggregate([]core.InstallmentRow{
		row(1, "P-1", "Ana", 5000, 1, 1, core.NewDate(2024, 3, 5), core.StatusPending),
	})

	b := cf.Month(Period{Year: 2025, Month: 1})
	if b.Key != "2025-01" {
		t.Errorf("Key = %q, want 2025-01", b.Key)
	}
	if !b.TotalPending.IsZero() || !b.TotalSettled.IsZero() {
		t.Errorf("empty month has totals %+v", b)
	}
	if b.Items == nil || len(b.Items) != 0 {
		t.Errorf("empty month Items = %#v, want empty non-nil slice", b.Items)
	}
}

func TestAggregate_NoRows(t *testing.T) {
	cf := Aggregate(nil)
	if got := cf.Months(); got == nil || len(got) != 0 {
		t.Errorf("Months() = %#v, want empty non-nil slice", got)
	}
}

func TestAggregate_MonthsSorted(t *testing.T) {
	rows := []core.InstallmentRow{
		row(1, "A", "Ana", 100, 1, 1, core.NewDate(2025, 1, 10), core.StatusPending),
		row(2, "B", "Ana", 100, 1, 1, core.NewDate(2024, 12, 10), core.StatusPending),
		row(3, "C", "Ana", 100, 1, 1, core.NewDate(2024, 2, 10), core.StatusSettled),
		row(4, "D", "Ana", 100, 1, 1, core.NewDate(2024, 12, 1), core.StatusPending),
	}
	got := Aggregate(rows).Months()
	want := []string{"2024-02", "2024-12", "2025-01"}
	if len(got) != len(want) {
		t.Fatalf("Months() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Months()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAggregate_StableOnEqualDueDates(t *testing.T) {
	due := core.NewDate(2024, 6, 10)
	rows := []core.InstallmentRow{
		row(10, "A", "Ana", 100, 1, 1, due, core.StatusPending),
		row(11, "B", "Bia", 100, 1, 1, due, core.StatusPending),
		row(12, "C", "Caio", 100, 1, 1, core.NewDate(2024, 6, 1), core.StatusPending),
	}
	items := Aggregate(rows).Month(Period{Year: 2024, Month: 6}).Items
	ids := []int64{items[0].ID, items[1].ID, items[2].ID}
	want := []int64{12, 10, 11}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("item order = %v, want %v", ids, want)
		}
	}
}

func TestAggregate_TotalsMatchItems(t *testing.T) {
	rows := []core.InstallmentRow{
		row(1, "A", "Ana", 1234, 1, 2, core.NewDate(2024, 5, 1), core.StatusPending),
		row(2, "A", "Ana", 1235, 2, 2, core.NewDate(2024, 6, 1), core.StatusSettled),
		row(3, "B", "Bia", 999, 1, 1, core.NewDate(2024, 5, 31), core.StatusSettled),
	}
	cf := Aggregate(rows)
	for _, key := range cf.Months() {
		var p Period
		switch key {
		case "2024-05":
			p = Period{Year: 2024, Month: 5}
		case "2024-06":
			p = Period{Year: 2024, Month: 6}
		default:
			t.Fatalf("unexpected month %q", key)
		}
		b := cf.Month(p)
		var pending, settled int64
		for _, it := range b.Items {
			if it.Status.IsSettled() {
				settled += it.Value.Cents
			} else {
				pending += it.Value.Cents
			}
		}
		if pending != b.TotalPending.Cents || settled != b.TotalSettled.Cents {
			t.Errorf("%s: totals %d/%d, items sum to %d/%d", key, b.TotalPending.Cents, b.TotalSettled.Cents, pending, settled)
		}
	}
}

func TestCashFlow_MonthReturnsCopy(t *testing.T) {
	cf := Aggregate([]core.InstallmentRow{
		row(1, "A", "Ana", 100, 1, 1, core.NewDate(2024, 5, 1), core.StatusPending),
	})
	p := Period{Year: 2024, Month: 5}
	b := cf.Month(p)
	b.Items[0].CustomerName = "changed"

	if got := cf.Month(p).Items[0].CustomerName; got != "Ana" {
		t.Errorf("bucket mutated through copy: %q", got)
	}
}

func TestPeriod_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Period
		wantErr error
	}{
		{"valid", Period{2024, 3}, nil},
		{"month zero", Period{2024, 0}, core.ErrInvalidMonth},
		{"month thirteen", Period{2024, 13}, core.ErrInvalidMonth},
		{"year zero", Period{0, 5}, core.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExportView(t *testing.T) {
	rows := []core.InstallmentRow{
		row(1, "P-9", "Ana", 10000, 2, 3, core.NewDate(2024, 2, 29), core.StatusSettled),
		row(2, "P-1", "Bia", 5050, 1, 1, core.NewDate(2024, 1, 5), core.StatusPending),
	}
	got := ExportView(rows)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	first := got[0]
	if first.OrderNumber != "P-9" || first.Position != "2/3" || first.Status != core.StatusSettled {
		t.Errorf("first row = %+v", first)
	}
	cells := first.Cells()
	if len(cells) != len(core.ExportHeaders) {
		t.Fatalf("Cells() has %d columns, headers have %d", len(cells), len(core.ExportHeaders))
	}
	if cells[5] != "2024-02-29" {
		t.Errorf("due date cell = %v", cells[5])
	}
	if got[1].OrderNumber != "P-1" {
		t.Errorf("export view reordered rows")
	}
}
