package http

import (
	"net/http"
	"strconv"

	"gestao/internal/core"
	"gestao/internal/services"
)

type customerRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Phone string `json:"phone" validate:"max=20"`
}

type orderRequest struct {
	Number        string `json:"number" validate:"required,max=50"`
	Customer      string `json:"customer" validate:"required,max=100"`
	Total         string `json:"total" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,max=50"`
	Installments  string `json:"installments" validate:"omitempty,number"`
	FirstDueDate  string `json:"first_due_date" validate:"required,datetime=2006-01-02"`
	CreatedOn     string `json:"created_on" validate:"omitempty,datetime=2006-01-02"`
}

// toInput converts the validated request into service input.
func (req orderRequest) toInput() (services.OrderInput, error) {
	total, err := core.ParseMoney(req.Total)
	if err != nil {
		return services.OrderInput{}, err
	}
	first, err := core.ParseDate(req.FirstDueDate)
	if err != nil {
		return services.OrderInput{}, err
	}
	in := services.OrderInput{
		Number:        req.Number,
		CustomerName:  req.Customer,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		FirstDueDate:  first,
	}
	in.InstallmentCount = 1
	if req.Installments != "" {
		n, err := strconv.Atoi(req.Installments)
		if err != nil || n < 1 || n > core.MaxInstallmentCount {
			return services.OrderInput{}, core.ErrInvalidInstallmentCount
		}
		in.InstallmentCount = n
	}
	if req.CreatedOn != "" {
		if in.CreatedOn, err = core.ParseDate(req.CreatedOn); err != nil {
			return services.OrderInput{}, err
		}
	}
	return in, nil
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.ledger.ListCustomers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]customerJSON, 0, len(customers))
	for _, c := range customers {
		out = append(out, toCustomerJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !s.bind(w, r, &req) {
		return
	}
	c, err := s.ledger.CreateCustomer(r.Context(), core.Customer{Name: req.Name, Phone: req.Phone})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerJSON(c))
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteCustomer(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateViews()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.ledger.ListOrders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderJSON(o.Order, o.CustomerName, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !s.bind(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}

	order, items, err := s.ledger.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateViews()
	writeJSON(w, http.StatusCreated, toOrderJSON(order, in.CustomerName, items))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	row, items, err := s.ledger.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(row.Order, row.CustomerName, items))
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteOrder(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateViews()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettleInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.SettleInstallment(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateViews()
	w.WriteHeader(http.StatusNoContent)
}
