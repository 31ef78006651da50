package storage

import (
	"context"

	"gestao/internal/core"
)

type (
	CustomerStore interface {
		CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error)
		// FindOrCreateCustomer returns the customer with name, inserting it when absent.
		FindOrCreateCustomer(ctx context.Context, name string) (core.Customer, error)
		ListCustomers(ctx context.Context) ([]core.Customer, error)
		// DeleteCustomer removes the customer with its orders and their installments.
		DeleteCustomer(ctx context.Context, id int64) error
	}

	OrderStore interface {
		// CreateOrderWithInstallments inserts the order and all its installments
		// atomically, filling in the generated ids.
		CreateOrderWithInstallments(ctx context.Context, o core.Order, items []core.Installment) (core.Order, []core.Installment, error)
		GetOrder(ctx context.Context, id int64) (core.OrderRow, []core.Installment, error)
		ListOrders(ctx context.Context) ([]core.OrderRow, error)
		// DeleteOrder removes the order and its installments.
		DeleteOrder(ctx context.Context, id int64) error
	}

	InstallmentStore interface {
		ListInstallments(ctx context.Context) ([]core.InstallmentRow, error)
		ListInstallmentsByDueDate(ctx context.Context) ([]core.InstallmentRow, error)
		SetInstallmentStatus(ctx context.Context, id int64, status core.Status) error
	}

	UserStore interface {
		CountUsers(ctx context.Context) (int, error)
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
		FindUserByUsername(ctx context.Context, username string) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
		UpdateUserPassword(ctx context.Context, id int64, hash string) error
	}

	// Store is everything a backend provides.
	Store interface {
		CustomerStore
		OrderStore
		InstallmentStore
		UserStore
		Close() error
	}
)
