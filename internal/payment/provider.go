package payment

import "context"

// Charge is the authorization request sent to the card provider.
type Charge struct {
	CustomerID   int
	OrderID      int
	InvoiceID    string
	PaymentType  string
	Installments int
	Value        float64
}

// Authorization is the provider's verdict on a charge.
type Authorization struct {
	Approved bool
	Status   string
}

// Provider authorizes charges with an external acquirer.
type Provider interface {
	Authorize(ctx context.Context, c Charge) (Authorization, error)
}

// ApprovingProvider approves every charge. Stand-in acquirer for environments
// without a real gateway.
type ApprovingProvider struct{}

// Authorize approves the charge.
func (ApprovingProvider) Authorize(_ context.Context, _ Charge) (Authorization, error) {
	return Authorization{Approved: true, Status: "succeeded"}, nil
}

// DecliningProvider declines every charge. Test double.
type DecliningProvider struct{}

// Authorize declines the charge.
func (DecliningProvider) Authorize(_ context.Context, _ Charge) (Authorization, error) {
	return Authorization{Approved: false, Status: "card_declined"}, nil
}
