package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusPending Status = "Pendente"
	StatusSettled Status = "Baixado"
)

const (
	maxCustomerNameLen  = 100
	maxPhoneLen         = 20
	maxOrderNumberLen   = 50
	maxPaymentMethodLen = 50
)

// MaxInstallmentCount bounds how many installments one order may be split into.
const MaxInstallmentCount = 120

type (
	// Status is the payment state of an installment.
	Status string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Customer struct {
		ID    int64
		Name  string
		Phone string // optional
	}

	Order struct {
		ID               int64
		Number           string
		Total            Money
		PaymentMethod    string
		InstallmentCount int
		CreatedOn        Date
		CustomerID       int64
	}

	Installment struct {
		ID      int64
		OrderID int64
		Seq     int // 1-based position within the order
		Value   Money
		DueDate Date
		Status  Status
	}
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")

	ErrInvalidDay              = fmt.Errorf("%w: invalid day", ErrInvalidInput)
	ErrInvalidMonth            = fmt.Errorf("%w: invalid month", ErrInvalidInput)
	ErrInvalidDate             = fmt.Errorf("%w: invalid date", ErrInvalidInput)
	ErrInvalidAmount           = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	ErrInvalidInstallmentCount = fmt.Errorf("%w: installment count must be between 1 and %d", ErrInvalidInput, MaxInstallmentCount)
	ErrInvalidStatus           = fmt.Errorf("%w: unknown installment status", ErrInvalidInput)
	ErrEmptyCustomerName       = fmt.Errorf("%w: empty customer name", ErrInvalidInput)
	ErrEmptyOrderNumber        = fmt.Errorf("%w: empty order number", ErrInvalidInput)
	ErrEmptyPaymentMethod      = fmt.Errorf("%w: empty payment method", ErrInvalidInput)
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Before reports whether d falls on an earlier calendar day than o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseStatus maps a stored label to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.TrimSpace(s)) {
	case StatusPending:
		return StatusPending, nil
	case StatusSettled:
		return StatusSettled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

func (s Status) String() string {
	return string(s)
}

// IsSettled reports whether the installment has been paid.
func (s Status) IsSettled() bool {
	return s == StatusSettled
}

func (c Customer) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCustomerName
	}
	if len(name) > maxCustomerNameLen {
		return fmt.Errorf("%w: customer name too long (max %d characters)", ErrInvalidInput, maxCustomerNameLen)
	}
	if len(strings.TrimSpace(c.Phone)) > maxPhoneLen {
		return fmt.Errorf("%w: phone too long (max %d characters)", ErrInvalidInput, maxPhoneLen)
	}
	return nil
}

func (o Order) Validate() error {
	number := strings.TrimSpace(o.Number)
	if number == "" {
		return ErrEmptyOrderNumber
	}
	if len(number) > maxOrderNumberLen {
		return fmt.Errorf("%w: order number too long (max %d characters)", ErrInvalidInput, maxOrderNumberLen)
	}
	if err := o.Total.Validate(); err != nil {
		return err
	}
	method := strings.TrimSpace(o.PaymentMethod)
	if method == "" {
		return ErrEmptyPaymentMethod
	}
	if len(method) > maxPaymentMethodLen {
		return fmt.Errorf("%w: payment method too long (max %d characters)", ErrInvalidInput, maxPaymentMethodLen)
	}
	if o.InstallmentCount < 1 || o.InstallmentCount > MaxInstallmentCount {
		return ErrInvalidInstallmentCount
	}
	return nil
}
