package port

import (
	"context"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// RegistryStore handles property registry persistence.
type RegistryStore interface {
	CreateProperty(ctx context.Context, p *domain.Property) error
	GetProperty(ctx context.Context, company, code string) (*domain.Property, error)
	ListProperties(ctx context.Context, company string) ([]domain.Property, error)
	UpdateProperty(ctx context.Context, p *domain.Property) error
	DeleteProperty(ctx context.Context, company, code string) error
}
