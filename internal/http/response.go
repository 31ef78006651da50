package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"gestao/internal/auth"
	"gestao/internal/core"
	applog "gestao/internal/log"
	"gestao/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Internal errors are logged and
// replaced with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeStatus(w http.ResponseWriter, status int) {
	writeJSON(w, status, errorBody{Error: http.StatusText(status)})
}

type customerJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

func toCustomerJSON(c core.Customer) customerJSON {
	return customerJSON{ID: c.ID, Name: c.Name, Phone: c.Phone}
}

type installmentJSON struct {
	ID       int64       `json:"id"`
	OrderID  int64       `json:"order_id"`
	Seq      int         `json:"seq"`
	Position string      `json:"position"`
	Value    core.Money  `json:"value"`
	DueDate  core.Date   `json:"due_date"`
	Status   core.Status `json:"status"`
}

type orderJSON struct {
	ID               int64             `json:"id"`
	Number           string            `json:"number"`
	CustomerID       int64             `json:"customer_id"`
	CustomerName     string            `json:"customer_name,omitempty"`
	Total            core.Money        `json:"total"`
	PaymentMethod    string            `json:"payment_method"`
	InstallmentCount int               `json:"installment_count"`
	CreatedOn        core.Date         `json:"created_on"`
	Installments     []installmentJSON `json:"installments,omitempty"`
}

func toOrderJSON(o core.Order, customerName string, items []core.Installment) orderJSON {
	out := orderJSON{
		ID:               o.ID,
		Number:           o.Number,
		CustomerID:       o.CustomerID,
		CustomerName:     customerName,
		Total:            o.Total,
		PaymentMethod:    o.PaymentMethod,
		InstallmentCount: o.InstallmentCount,
		CreatedOn:        o.CreatedOn,
	}
	for _, it := range items {
		out.Installments = append(out.Installments, installmentJSON{
			ID:       it.ID,
			OrderID:  it.OrderID,
			Seq:      it.Seq,
			Position: services.PositionLabel(it.Seq, o.InstallmentCount),
			Value:    it.Value,
			DueDate:  it.DueDate,
			Status:   it.Status,
		})
	}
	return out
}

type userJSON struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

func toUserJSON(u core.User) userJSON {
	return userJSON{ID: u.ID, Username: u.Username, Admin: u.IsAdmin}
}
