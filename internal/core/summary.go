package core

// ExportHeaders are the fixed column titles of the installment export.
var ExportHeaders = []string{
	"Numero do Pedido",
	"Cliente",
	"Valor da Parcela",
	"Forma de Pagamento",
	"Numero da Parcela",
	"Data de Vencimento",
	"Status",
}

// InstallmentRow is an installment together with the order and customer
// fields the cash-flow views read. Storage resolves the join.
type InstallmentRow struct {
	Installment
	OrderNumber      string
	CustomerName     string
	PaymentMethod    string
	InstallmentCount int
}

// OrderRow is an order with its customer's name.
type OrderRow struct {
	Order
	CustomerName string
}

// ExportRow is one installment in the flat export view.
type ExportRow struct {
	OrderNumber   string
	CustomerName  string
	Value         Money
	PaymentMethod string
	Position      string // "i/N"
	DueDate       Date
	Status        Status
}

// Cells returns the row in ExportHeaders order.
func (r ExportRow) Cells() []any {
	return []any{
		r.OrderNumber,
		r.CustomerName,
		r.Value.Float(),
		r.PaymentMethod,
		r.Position,
		r.DueDate.String(),
		r.Status.String(),
	}
}
