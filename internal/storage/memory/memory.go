// Package memory is an in-process Store with the same cascading and
// uniqueness rules as the SQL repository. Nothing survives a restart.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gestao/internal/core"
	"gestao/internal/storage"
)

type Store struct {
	mu           sync.Mutex
	nextID       int64
	customers    map[int64]core.Customer
	orders       map[int64]core.Order
	installments map[int64]core.Installment
	users        map[int64]core.User
}

var _ storage.Store = (*Store)(nil)

func New(customers ...string) *Store {
	s := &Store{
		customers:    make(map[int64]core.Customer),
		orders:       make(map[int64]core.Order),
		installments: make(map[int64]core.Installment),
		users:        make(map[int64]core.User),
	}
	for _, name := range dedupe(customers) {
		id := s.id()
		s.customers[id] = core.Customer{ID: id, Name: name}
	}
	return s
}

// NewFromFiles seeds customer names from base/seed_customers.txt when present.
func NewFromFiles(base string) *Store {
	return New(readLines(filepath.Join(base, "seed_customers.txt"))...)
}

func (s *Store) Close() error { return nil }

// id returns the next identifier. Callers hold mu.
func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateCustomer(_ context.Context, c core.Customer) (core.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customerByName(c.Name); ok {
		return core.Customer{}, fmt.Errorf("customer %q: %w", c.Name, core.ErrConflict)
	}
	c.ID = s.id()
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) FindOrCreateCustomer(_ context.Context, name string) (core.Customer, error) {
	name = strings.TrimSpace(name)
	if err := (core.Customer{Name: name}).Validate(); err != nil {
		return core.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.customerByName(name); ok {
		return c, nil
	}
	c := core.Customer{ID: s.id(), Name: name}
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return fmt.Errorf("delete customer %d: %w", id, core.ErrNotFound)
	}
	for oid, o := range s.orders {
		if o.CustomerID == id {
			s.deleteOrder(oid)
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateOrderWithInstallments(_ context.Context, o core.Order, items []core.Installment) (core.Order, []core.Installment, error) {
	if err := o.Validate(); err != nil {
		return core.Order{}, nil, err
	}
	if len(items) != o.InstallmentCount {
		return core.Order{}, nil, fmt.Errorf("%w: order %q has %d installments, expected %d",
			core.ErrInvalidInput, o.Number, len(items), o.InstallmentCount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[o.CustomerID]; !ok {
		return core.Order{}, nil, fmt.Errorf("customer %d: %w", o.CustomerID, core.ErrNotFound)
	}
	for _, existing := range s.orders {
		if existing.Number == o.Number {
			return core.Order{}, nil, fmt.Errorf("order %q: %w", o.Number, core.ErrConflict)
		}
	}

	o.ID = s.id()
	s.orders[o.ID] = o
	saved := make([]core.Installment, len(items))
	for i, it := range items {
		it.ID = s.id()
		it.OrderID = o.ID
		if it.Status == "" {
			it.Status = core.StatusPending
		}
		s.installments[it.ID] = it
		saved[i] = it
	}
	return o, saved, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (core.OrderRow, []core.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return core.OrderRow{}, nil, fmt.Errorf("order %d: %w", id, core.ErrNotFound)
	}
	var items []core.Installment
	for _, it := range s.installments {
		if it.OrderID == id {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })
	return core.OrderRow{Order: o, CustomerName: s.customers[o.CustomerID].Name}, items, nil
}

func (s *Store) ListOrders(_ context.Context) ([]core.OrderRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.OrderRow, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, core.OrderRow{Order: o, CustomerName: s.customers[o.CustomerID].Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return fmt.Errorf("delete order %d: %w", id, core.ErrNotFound)
	}
	s.deleteOrder(id)
	return nil
}

// deleteOrder drops the order and its installments. Callers hold mu.
func (s *Store) deleteOrder(id int64) {
	for iid, it := range s.installments {
		if it.OrderID == id {
			delete(s.installments, iid)
		}
	}
	delete(s.orders, id)
}

func (s *Store) ListInstallments(_ context.Context) ([]core.InstallmentRow, error) {
	rows := s.installmentRows()
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s *Store) ListInstallmentsByDueDate(_ context.Context) ([]core.InstallmentRow, error) {
	rows := s.installmentRows()
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DueDate.Equal(rows[j].DueDate.Time) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].DueDate.Before(rows[j].DueDate)
	})
	return rows, nil
}

func (s *Store) installmentRows() []core.InstallmentRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]core.InstallmentRow, 0, len(s.installments))
	for _, it := range s.installments {
		o := s.orders[it.OrderID]
		rows = append(rows, core.InstallmentRow{
			Installment:      it,
			OrderNumber:      o.Number,
			CustomerName:     s.customers[o.CustomerID].Name,
			PaymentMethod:    o.PaymentMethod,
			InstallmentCount: o.InstallmentCount,
		})
	}
	return rows
}

func (s *Store) SetInstallmentStatus(_ context.Context, id int64, status core.Status) error {
	if _, err := core.ParseStatus(string(status)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.installments[id]
	if !ok {
		return fmt.Errorf("installment %d: %w", id, core.ErrNotFound)
	}
	it.Status = status
	s.installments[id] = it
	return nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return core.User{}, fmt.Errorf("user %q: %w", u.Username, core.ErrConflict)
		}
	}
	u.ID = s.id()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (core.User, error) {
	username = strings.TrimSpace(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

// customerByName scans for a customer. Callers hold mu.
func (s *Store) customerByName(name string) (core.Customer, bool) {
	for _, c := range s.customers {
		if c.Name == name {
			return c, true
		}
	}
	return core.Customer{}, false
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
