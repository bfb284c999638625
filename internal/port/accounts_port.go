package port

import (
	"context"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// AccountStore handles property and resident account persistence.
// ListActiveAccounts returns accounts ordered ascending by ID so bulk
// operations process them deterministically.
type AccountStore interface {
	CreatePropertyAccount(ctx context.Context, a *domain.PropertyAccount) error
	GetPropertyAccount(ctx context.Context, id string) (*domain.PropertyAccount, error)
	GetAccountByProperty(ctx context.Context, company, propertyCode string) (*domain.PropertyAccount, error)
	ListAccounts(ctx context.Context, company string) ([]domain.PropertyAccount, error)
	ListActiveAccounts(ctx context.Context, company string) ([]domain.PropertyAccount, error)
	UpdatePropertyAccount(ctx context.Context, a *domain.PropertyAccount) error

	CreateResidentAccount(ctx context.Context, r *domain.ResidentAccount) error
	GetResidentAccount(ctx context.Context, id string) (*domain.ResidentAccount, error)
	ListResidentsByAccount(ctx context.Context, accountID string) ([]domain.ResidentAccount, error)
	UpdateResidentAccount(ctx context.Context, r *domain.ResidentAccount) error
}
