package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Payment Collection
// ============================================================

// PaymentStatus is the processing state of a payment collection.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentProcessed PaymentStatus = "processed"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentReversed  PaymentStatus = "reversed"
)

// PaymentMethod is how the payment was collected.
type PaymentMethod string

const (
	MethodTransfer PaymentMethod = "transfer"
	MethodCard     PaymentMethod = "card"
	MethodCash     PaymentMethod = "cash"
	MethodCheck    PaymentMethod = "check"
)

// AllocationTarget distinguishes invoice from fine allocations.
type AllocationTarget string

const (
	TargetInvoice AllocationTarget = "invoice"
	TargetFine    AllocationTarget = "fine"
)

// Allocation is the application of part of a payment to a specific invoice
// or fine. Reversals append negative allocations rather than deleting rows,
// so the full application history stays auditable.
type Allocation struct {
	Target   AllocationTarget `json:"target"`
	TargetID string           `json:"target_id"`
	Amount   decimal.Decimal  `json:"amount"`
}

// PaymentCollection records one inbound payment against one account.
// Invariant while processed: Gross = sum of allocation amounts + Surplus.
type PaymentCollection struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	Company         string          `json:"company"`
	Gross           decimal.Decimal `json:"gross"`
	Method          PaymentMethod   `json:"method"`
	Status          PaymentStatus   `json:"status"`
	PostingDate     time.Time       `json:"posting_date"`
	Allocations     []Allocation    `json:"allocations,omitempty"`
	Surplus         decimal.Decimal `json:"surplus"`
	CreditBalanceID string          `json:"credit_balance_id,omitempty"`
	ReversedAt      *time.Time      `json:"reversed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate enforces payment invariants on create.
func (p *PaymentCollection) Validate() error {
	if p.AccountID == "" {
		return &ErrValidation{Field: "account_id", Message: "required"}
	}
	if !p.Gross.IsPositive() {
		return &ErrValidation{Field: "gross", Message: "must be positive"}
	}
	switch p.Method {
	case MethodTransfer, MethodCard, MethodCash, MethodCheck:
	default:
		return &ErrValidation{Field: "method", Message: "unknown payment method"}
	}
	return nil
}

// AllocatedTotal sums all allocation amounts (net of reversals).
func (p *PaymentCollection) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}
