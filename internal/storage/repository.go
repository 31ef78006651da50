package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"gestao/internal/core"
)

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

// SQLRepository implements Store over database/sql. Queries use $n
// placeholders, which both SQLite and PostgreSQL accept.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
}

var _ Store = (*SQLRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the SQLite file at dbPath
// and brings its schema up to date.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newSQLRepository(db, dialectSQLite), nil
}

// NewPostgresRepository connects to dsn and brings its schema up to date.
func NewPostgresRepository(dsn string) (*SQLRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newSQLRepository(db, dialectPostgres), nil
}

func newSQLRepository(db *sql.DB, d dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: d}
}

// sqliteDSN turns on foreign keys for every pooled connection so deletes cascade.
func sqliteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) isUniqueViolation(err error) bool {
	switch r.dialect {
	case dialectPostgres:
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	default:
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) {
			return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
		}
		// sqlmock and other drivers only carry the message
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	}
}

const (
	customerColumns = `id, name, phone`

	orderSelect = `SELECT o.id, o.number, o.total_cents, o.payment_method, o.installment_count,
       o.created_on, o.customer_id, c.name
FROM orders o
JOIN customers c ON c.id = o.customer_id`

	installmentColumns = `id, order_id, seq, value_cents, due_date, status`

	installmentRowSelect = `SELECT i.id, i.order_id, i.seq, i.value_cents, i.due_date, i.status,
       o.number, c.name, o.payment_method, o.installment_count
FROM installments i
JOIN orders o ON o.id = i.order_id
JOIN customers c ON c.id = o.customer_id`

	userColumns = `id, username, password_hash, is_admin`
)

// CreateCustomer implements CustomerStore
func (r *SQLRepository) CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO customers (name, phone) VALUES ($1, $2) RETURNING id`,
		c.Name, c.Phone).Scan(&c.ID)
	if err != nil {
		if r.isUniqueViolation(err) {
			return core.Customer{}, fmt.Errorf("customer %q: %w", c.Name, core.ErrConflict)
		}
		return core.Customer{}, fmt.Errorf("insert customer: %w", err)
	}

	slog.InfoContext(ctx, "Customer saved", "id", c.ID, "name", c.Name, "dialect", r.dialect)
	return c, nil
}

// FindOrCreateCustomer implements CustomerStore
func (r *SQLRepository) FindOrCreateCustomer(ctx context.Context, name string) (core.Customer, error) {
	name = strings.TrimSpace(name)
	if err := (core.Customer{Name: name}).Validate(); err != nil {
		return core.Customer{}, err
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (name, phone) VALUES ($1, '') ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return core.Customer{}, fmt.Errorf("ensure customer: %w", err)
	}

	var c core.Customer
	err := r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE name = $1`, name).
		Scan(&c.ID, &c.Name, &c.Phone)
	if err != nil {
		return core.Customer{}, fmt.Errorf("find customer %q: %w", name, err)
	}
	return c, nil
}

// ListCustomers implements CustomerStore
func (r *SQLRepository) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []core.Customer
	for rows.Next() {
		var c core.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCustomer implements CustomerStore
func (r *SQLRepository) DeleteCustomer(ctx context.Context, id int64) error {
	if err := r.deleteByID(ctx, `DELETE FROM customers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Customer deleted with its orders", "id", id)
	return nil
}

// CreateOrderWithInstallments implements OrderStore
func (r *SQLRepository) CreateOrderWithInstallments(ctx context.Context, o core.Order, items []core.Installment) (core.Order, []core.Installment, error) {
	if err := o.Validate(); err != nil {
		return core.Order{}, nil, err
	}
	if len(items) != o.InstallmentCount {
		return core.Order{}, nil, fmt.Errorf("%w: order %q has %d installments, expected %d",
			core.ErrInvalidInput, o.Number, len(items), o.InstallmentCount)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Order{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (number, total_cents, payment_method, installment_count, created_on, customer_id)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		o.Number, o.Total.Cents, o.PaymentMethod, o.InstallmentCount, o.CreatedOn, o.CustomerID).Scan(&o.ID)
	if err != nil {
		if r.isUniqueViolation(err) {
			return core.Order{}, nil, fmt.Errorf("order %q: %w", o.Number, core.ErrConflict)
		}
		return core.Order{}, nil, fmt.Errorf("insert order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO installments (order_id, seq, value_cents, due_date, status)
VALUES ($1, $2, $3, $4, $5) RETURNING id`)
	if err != nil {
		return core.Order{}, nil, fmt.Errorf("prepare installment insert: %w", err)
	}
	defer stmt.Close()

	saved := make([]core.Installment, len(items))
	for i, it := range items {
		it.OrderID = o.ID
		if it.Status == "" {
			it.Status = core.StatusPending
		}
		if err := stmt.QueryRowContext(ctx, it.OrderID, it.Seq, it.Value.Cents, it.DueDate, it.Status).Scan(&it.ID); err != nil {
			return core.Order{}, nil, fmt.Errorf("insert installment %d: %w", it.Seq, err)
		}
		saved[i] = it
	}

	if err := tx.Commit(); err != nil {
		return core.Order{}, nil, fmt.Errorf("commit order: %w", err)
	}

	slog.InfoContext(ctx, "Order saved",
		"id", o.ID,
		"number", o.Number,
		"amount_cents", o.Total.Cents,
		"installments", len(saved))

	return o, saved, nil
}

// GetOrder implements OrderStore
func (r *SQLRepository) GetOrder(ctx context.Context, id int64) (core.OrderRow, []core.Installment, error) {
	row := r.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id)
	o, err := scanOrderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.OrderRow{}, nil, fmt.Errorf("order %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.OrderRow{}, nil, fmt.Errorf("get order %d: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE order_id = $1 ORDER BY seq`, id)
	if err != nil {
		return core.OrderRow{}, nil, fmt.Errorf("list order installments: %w", err)
	}
	defer rows.Close()

	var items []core.Installment
	for rows.Next() {
		it, err := scanInstallment(rows)
		if err != nil {
			return core.OrderRow{}, nil, err
		}
		items = append(items, it)
	}
	return o, items, rows.Err()
}

// ListOrders implements OrderStore
func (r *SQLRepository) ListOrders(ctx context.Context) ([]core.OrderRow, error) {
	rows, err := r.db.QueryContext(ctx, orderSelect+` ORDER BY o.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []core.OrderRow
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteOrder implements OrderStore
func (r *SQLRepository) DeleteOrder(ctx context.Context, id int64) error {
	if err := r.deleteByID(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Order deleted with its installments", "id", id)
	return nil
}

// ListInstallments implements InstallmentStore
func (r *SQLRepository) ListInstallments(ctx context.Context) ([]core.InstallmentRow, error) {
	return r.queryInstallmentRows(ctx, installmentRowSelect+` ORDER BY i.id`)
}

// ListInstallmentsByDueDate implements InstallmentStore
func (r *SQLRepository) ListInstallmentsByDueDate(ctx context.Context) ([]core.InstallmentRow, error) {
	return r.queryInstallmentRows(ctx, installmentRowSelect+` ORDER BY i.due_date, i.id`)
}

// SetInstallmentStatus implements InstallmentStore
func (r *SQLRepository) SetInstallmentStatus(ctx context.Context, id int64, status core.Status) error {
	if _, err := core.ParseStatus(string(status)); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE installments SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update installment %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("installment %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Installment status updated", "id", id, "status", status)
	return nil
}

// CountUsers implements UserStore
func (r *SQLRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CreateUser implements UserStore
func (r *SQLRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, is_admin) VALUES ($1, $2, $3) RETURNING id`,
		u.Username, u.PasswordHash, u.IsAdmin).Scan(&u.ID)
	if err != nil {
		if r.isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("user %q: %w", u.Username, core.ErrConflict)
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser implements UserStore
func (r *SQLRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindUserByUsername implements UserStore
func (r *SQLRepository) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, strings.TrimSpace(username))
}

// ListUsers implements UserStore
func (r *SQLRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUserPassword implements UserStore
func (r *SQLRepository) UpdateUserPassword(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("user %d: %w", id, err)
	}
	return nil
}

func (r *SQLRepository) findUser(ctx context.Context, query string, arg any) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %v: %w", arg, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLRepository) deleteByID(ctx context.Context, query string, id int64) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *SQLRepository) queryInstallmentRows(ctx context.Context, query string) ([]core.InstallmentRow, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	var out []core.InstallmentRow
	for rows.Next() {
		var (
			ir     core.InstallmentRow
			status string
		)
		err := rows.Scan(&ir.ID, &ir.OrderID, &ir.Seq, &ir.Value.Cents, &ir.DueDate, &status,
			&ir.OrderNumber, &ir.CustomerName, &ir.PaymentMethod, &ir.InstallmentCount)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		if ir.Status, err = core.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("installment %d: %w", ir.ID, err)
		}
		out = append(out, ir)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrderRow(s scanner) (core.OrderRow, error) {
	var o core.OrderRow
	err := s.Scan(&o.ID, &o.Number, &o.Total.Cents, &o.PaymentMethod, &o.InstallmentCount,
		&o.CreatedOn, &o.CustomerID, &o.CustomerName)
	return o, err
}

func scanInstallment(s scanner) (core.Installment, error) {
	var (
		it     core.Installment
		status string
	)
	if err := s.Scan(&it.ID, &it.OrderID, &it.Seq, &it.Value.Cents, &it.DueDate, &status); err != nil {
		return core.Installment{}, fmt.Errorf("scan installment: %w", err)
	}
	st, err := core.ParseStatus(status)
	if err != nil {
		return core.Installment{}, err
	}
	it.Status = st
	return it, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
