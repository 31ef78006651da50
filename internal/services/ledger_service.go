package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gestao/internal/amqp"
	"gestao/internal/core"
	applog "gestao/internal/log"
	"gestao/internal/storage"
)

// EventPublisher announces ledger changes to other processes.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error
}

// OrderInput is what a caller supplies to register an order.
type OrderInput struct {
	Number           string
	CustomerName     string
	Total            core.Money
	PaymentMethod    string
	InstallmentCount int // 1..core.MaxInstallmentCount
	FirstDueDate     core.Date
	CreatedOn        core.Date // defaults to today
}

// MonthView is the cash-flow page for one month.
type MonthView struct {
	Year   int         `json:"year"`
	Month  int         `json:"month"`
	Bucket MonthBucket `json:"bucket"`
	Months []string    `json:"months"`
}

// LedgerService orchestrates ledger operations across storage and AMQP
type LedgerService struct {
	store     storage.Store
	generator *Generator
	publisher EventPublisher
	now       func() time.Time
}

func NewLedgerService(store storage.Store, generator *Generator, publisher EventPublisher) *LedgerService {
	if generator == nil {
		generator = &Generator{apportioner: LastAbsorbsRemainder{}}
	}
	return &LedgerService{
		store:     store,
		generator: generator,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *LedgerService) CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	created, err := s.store.CreateCustomer(ctx, c)
	if err != nil {
		return core.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return created, nil
}

func (s *LedgerService) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	return s.store.ListCustomers(ctx)
}

// DeleteCustomer removes the customer together with its orders and installments.
func (s *LedgerService) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	s.publish(ctx, amqp.CustomerDeleted, id)
	return nil
}

// CreateOrder registers an order and its installment schedule in one step.
// The customer is looked up by name and created when missing.
func (s *LedgerService) CreateOrder(ctx context.Context, in OrderInput) (core.Order, []core.Installment, error) {
	if in.CreatedOn.IsZero() {
		in.CreatedOn = core.DateOf(s.now())
	}

	name := strings.TrimSpace(in.CustomerName)
	if err := (core.Customer{Name: name}).Validate(); err != nil {
		return core.Order{}, nil, err
	}

	order := core.Order{
		Number:           strings.TrimSpace(in.Number),
		Total:            in.Total,
		PaymentMethod:    strings.TrimSpace(in.PaymentMethod),
		InstallmentCount: in.InstallmentCount,
		CreatedOn:        in.CreatedOn,
	}
	if err := order.Validate(); err != nil {
		return core.Order{}, nil, err
	}

	lines, err := s.generator.Generate(in.Total, in.InstallmentCount, in.FirstDueDate)
	if err != nil {
		return core.Order{}, nil, err
	}

	customer, err := s.store.FindOrCreateCustomer(ctx, name)
	if err != nil {
		return core.Order{}, nil, fmt.Errorf("resolve customer: %w", err)
	}
	order.CustomerID = customer.ID

	items := make([]core.Installment, len(lines))
	for i, l := range lines {
		items[i] = core.Installment{
			Seq:     l.Seq,
			Value:   l.Value,
			DueDate: l.DueDate,
			Status:  core.StatusPending,
		}
	}

	created, installments, err := s.store.CreateOrderWithInstallments(ctx, order, items)
	if err != nil {
		return core.Order{}, nil, fmt.Errorf("create order %s: %w", order.Number, err)
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogOrderCreated(ctx, created.ID, created.Number, customer.ID, created.Total.Cents, len(installments))

	s.publish(ctx, amqp.OrderCreated, created.ID)
	return created, installments, nil
}

func (s *LedgerService) GetOrder(ctx context.Context, id int64) (core.OrderRow, []core.Installment, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *LedgerService) ListOrders(ctx context.Context) ([]core.OrderRow, error) {
	return s.store.ListOrders(ctx)
}

// DeleteOrder removes the order and its installments.
func (s *LedgerService) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.store.DeleteOrder(ctx, id); err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	s.publish(ctx, amqp.OrderDeleted, id)
	return nil
}

// SettleInstallment marks an installment as paid. Settling is one-way and
// settling an already settled installment succeeds without change.
func (s *LedgerService) SettleInstallment(ctx context.Context, id int64) error {
	if err := s.store.SetInstallmentStatus(ctx, id, core.StatusSettled); err != nil {
		return fmt.Errorf("settle installment %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Installment settled", applog.FieldInstallmentID, id)
	s.publish(ctx, amqp.InstallmentSettled, id)
	return nil
}

// CashFlow aggregates every installment and selects the month p.
func (s *LedgerService) CashFlow(ctx context.Context, p Period) (MonthView, error) {
	if err := p.Validate(); err != nil {
		return MonthView{}, err
	}
	rows, err := s.store.ListInstallmentsByDueDate(ctx)
	if err != nil {
		return MonthView{}, fmt.Errorf("list installments: %w", err)
	}
	cf := Aggregate(rows)
	return MonthView{
		Year:   p.Year,
		Month:  p.Month,
		Bucket: cf.Month(p),
		Months: cf.Months(),
	}, nil
}

// CurrentPeriod is the month containing the service clock's today.
func (s *LedgerService) CurrentPeriod() Period {
	return PeriodOf(s.now())
}

// ExportRows returns the flat export listing of every installment.
func (s *LedgerService) ExportRows(ctx context.Context) ([]core.ExportRow, error) {
	rows, err := s.store.ListInstallments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return ExportView(rows), nil
}

// Digest builds the reminder digest as of today.
func (s *LedgerService) Digest(ctx context.Context, lookaheadDays int) (Digest, error) {
	rows, err := s.store.ListInstallmentsByDueDate(ctx)
	if err != nil {
		return Digest{}, fmt.Errorf("list installments: %w", err)
	}
	return BuildDigest(rows, core.DateOf(s.now()), lookaheadDays), nil
}

func (s *LedgerService) publish(ctx context.Context, t amqp.EventType, id int64) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Event publisher not available, skipping event", "type", t)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(t, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", t, "entity_id", id, "error", err)
	}
}

// Close closes storage.
func (s *LedgerService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
