package port

import (
	"context"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// FeeStructureStore handles fee structure persistence.
type FeeStructureStore interface {
	CreateFeeStructure(ctx context.Context, fs *domain.FeeStructure) error
	GetFeeStructure(ctx context.Context, id string) (*domain.FeeStructure, error)
	ListFeeStructures(ctx context.Context, company string) ([]domain.FeeStructure, error)
	// ListSubmittedStructures returns submitted structures of the company
	// whose effective window contains the given date.
	ListSubmittedStructures(ctx context.Context, company string, date time.Time) ([]domain.FeeStructure, error)
	UpdateFeeStructure(ctx context.Context, fs *domain.FeeStructure) error
}

// BillingStore handles billing cycles and the invoices they own.
// ListOpenInvoicesByAccount returns invoices with outstanding > 0 ordered
// by due date ascending, then ID ascending (stable oldest-first policy).
type BillingStore interface {
	CreateCycle(ctx context.Context, c *domain.BillingCycle) error
	GetCycle(ctx context.Context, id string) (*domain.BillingCycle, error)
	ListCycles(ctx context.Context, company string) ([]domain.BillingCycle, error)
	// ListOverlappingCycles returns non-cancelled cycles of the company
	// whose [start, end] window intersects the given one, excluding the
	// cycle with excludeID.
	ListOverlappingCycles(ctx context.Context, company string, start, end time.Time, excludeID string) ([]domain.BillingCycle, error)
	UpdateCycle(ctx context.Context, c *domain.BillingCycle) error

	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	GetInvoiceByCycleAndAccount(ctx context.Context, cycleID, accountID string) (*domain.Invoice, error)
	ListInvoicesByCycle(ctx context.Context, cycleID string) ([]domain.Invoice, error)
	ListOpenInvoicesByAccount(ctx context.Context, accountID string) ([]domain.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *domain.Invoice) error
}
