package port

import (
	"context"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// PaymentStore handles payment collections and their allocation rows.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *domain.PaymentCollection) error
	GetPayment(ctx context.Context, id string) (*domain.PaymentCollection, error)
	ListPaymentsByAccount(ctx context.Context, accountID string) ([]domain.PaymentCollection, error)
	UpdatePayment(ctx context.Context, p *domain.PaymentCollection) error
}

// CreditStore handles credit balances. ListConsumableCredits returns
// credits eligible for auto-application ordered FIFO by creation time.
type CreditStore interface {
	CreateCredit(ctx context.Context, cb *domain.CreditBalance) error
	GetCredit(ctx context.Context, id string) (*domain.CreditBalance, error)
	ListCreditsByAccount(ctx context.Context, accountID string) ([]domain.CreditBalance, error)
	ListConsumableCredits(ctx context.Context, accountID string, today time.Time) ([]domain.CreditBalance, error)
	// ListExpiredCredits returns active or partially applied credits whose
	// expiry date is strictly before asOf and which still hold value.
	ListExpiredCredits(ctx context.Context, asOf time.Time) ([]domain.CreditBalance, error)
	// ListExpiringCredits returns consumable credits expiring on or before
	// the horizon date.
	ListExpiringCredits(ctx context.Context, company string, horizon time.Time) ([]domain.CreditBalance, error)
	UpdateCredit(ctx context.Context, cb *domain.CreditBalance) error
}

// FineStore handles fines. ListOpenFinesByAccount orders by due date
// ascending, then ID ascending, matching invoice allocation order.
type FineStore interface {
	CreateFine(ctx context.Context, f *domain.Fine) error
	GetFine(ctx context.Context, id string) (*domain.Fine, error)
	ListFinesByAccount(ctx context.Context, accountID string) ([]domain.Fine, error)
	ListOpenFinesByAccount(ctx context.Context, accountID string) ([]domain.Fine, error)
	ListOpenFinesByCompany(ctx context.Context, company string) ([]domain.Fine, error)
	UpdateFine(ctx context.Context, f *domain.Fine) error
}
