package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Billing Cycle
// ============================================================

// CycleStatus is the lifecycle status of a billing cycle.
type CycleStatus string

const (
	CycleDraft     CycleStatus = "draft"
	CycleScheduled CycleStatus = "scheduled"
	CycleActive    CycleStatus = "active"
	CycleInvoiced  CycleStatus = "invoiced"
	CycleCompleted CycleStatus = "completed"
	CycleCancelled CycleStatus = "cancelled"
)

// GenerationStatus tracks bulk invoice generation separately from the
// cycle lifecycle.
type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "pending"
	GenerationInProgress GenerationStatus = "in_progress"
	GenerationDone       GenerationStatus = "done"
	GenerationError      GenerationStatus = "error"
)

// GenerationFailure records one account that failed during bulk generation.
type GenerationFailure struct {
	AccountID string `json:"account_id"`
	Message   string `json:"message"`
}

// BillingCycle is a date window during which one invoice per active
// property account is generated against a fee structure.
type BillingCycle struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Company          string              `json:"company"`
	Frequency        BillingFrequency    `json:"frequency"`
	StartDate        time.Time           `json:"start_date"`
	EndDate          time.Time           `json:"end_date"`
	DueDate          time.Time           `json:"due_date"`
	GraceDays        int                 `json:"grace_days"`
	FeeStructureID   string              `json:"fee_structure_id"`
	Status           CycleStatus         `json:"status"`
	GenerationStatus GenerationStatus    `json:"generation_status"`
	TotalInvoiced    decimal.Decimal     `json:"total_invoiced"`
	PaidAmount       decimal.Decimal     `json:"paid_amount"`
	PendingAmount    decimal.Decimal     `json:"pending_amount"`
	OverdueAmount    decimal.Decimal     `json:"overdue_amount"`
	CollectionRate   decimal.Decimal     `json:"collection_rate"`
	GeneratedCount   int                 `json:"generated_count"`
	FailedCount      int                 `json:"failed_count"`
	Failures         []GenerationFailure `json:"failures,omitempty"`
	LastReminderSent *time.Time          `json:"last_reminder_sent,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Validate enforces cycle date invariants: start < end <= due.
func (c *BillingCycle) Validate() error {
	if c.Name == "" {
		return &ErrValidation{Field: "name", Message: "required"}
	}
	if c.Company == "" {
		return &ErrValidation{Field: "company", Message: "required"}
	}
	if c.FeeStructureID == "" {
		return &ErrValidation{Field: "fee_structure_id", Message: "required"}
	}
	if !c.StartDate.Before(c.EndDate) {
		return &ErrValidation{Field: "end_date", Message: "must be after start_date"}
	}
	if c.DueDate.Before(c.EndDate) {
		return &ErrValidation{Field: "due_date", Message: "must not be before end_date"}
	}
	if c.GraceDays < 0 {
		return &ErrValidation{Field: "grace_days", Message: "must not be negative"}
	}
	return nil
}

// Overlaps reports whether two date windows intersect (inclusive bounds).
func (c *BillingCycle) Overlaps(start, end time.Time) bool {
	return !c.EndDate.Before(start) && !c.StartDate.After(end)
}

// cycleTransitions enumerates the legal cycle transitions.
var cycleTransitions = map[CycleStatus][]CycleStatus{
	CycleDraft:     {CycleScheduled, CycleCancelled},
	CycleScheduled: {CycleActive, CycleCancelled},
	CycleActive:    {CycleInvoiced, CycleCancelled},
	CycleInvoiced:  {CycleCompleted},
}

// CanTransition reports whether the cycle may move to the target status.
func (c *BillingCycle) CanTransition(to CycleStatus) bool {
	for _, s := range cycleTransitions[c.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the cycle to the target status or fails with a
// state-transition error.
func (c *BillingCycle) Transition(to CycleStatus) error {
	if !c.CanTransition(to) {
		return &ErrStateTransition{Entity: "billing_cycle", From: string(c.Status), To: string(to)}
	}
	c.Status = to
	return nil
}

// ============================================================
// Invoice
// ============================================================

// InvoiceStatus is the settlement state of an invoice.
type InvoiceStatus string

const (
	InvoiceOpen      InvoiceStatus = "open"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Invoice is a single charge against a property account for one cycle.
// Paid + Outstanding always equals Amount.
type Invoice struct {
	ID          string          `json:"id"`
	CycleID     string          `json:"cycle_id"`
	AccountID   string          `json:"account_id"`
	Company     string          `json:"company"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Paid        decimal.Decimal `json:"paid_amount"`
	Outstanding decimal.Decimal `json:"outstanding_amount"`
	Status      InvoiceStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Settle applies an amount to the invoice, keeping Paid + Outstanding =
// Amount. The caller guarantees amount <= Outstanding.
func (i *Invoice) Settle(amount decimal.Decimal) {
	i.Paid = i.Paid.Add(amount)
	i.Outstanding = i.Outstanding.Sub(amount)
	if i.Outstanding.IsZero() {
		i.Status = InvoicePaid
	}
}

// Reopen restores a previously applied amount (payment reversal).
func (i *Invoice) Reopen(amount decimal.Decimal) {
	i.Paid = i.Paid.Sub(amount)
	i.Outstanding = i.Outstanding.Add(amount)
	if i.Outstanding.IsPositive() && i.Status == InvoicePaid {
		i.Status = InvoiceOpen
	}
}
