package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Property Account
// ============================================================

// BillingFrequency is how often a property account is billed.
type BillingFrequency string

const (
	FreqMonthly    BillingFrequency = "monthly"
	FreqBimonthly  BillingFrequency = "bimonthly"
	FreqQuarterly  BillingFrequency = "quarterly"
	FreqSemiannual BillingFrequency = "semiannual"
	FreqAnnual     BillingFrequency = "annual"
)

// AccountStatus is the lifecycle status of a property account.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

// PropertyAccount is the ledger tied to a single property within a company.
// CurrentBalance is negative when the property owes money. CreditBalance
// aggregates the remaining amounts of the account's credit balances and is
// never negative.
type PropertyAccount struct {
	ID             string           `json:"id"`
	Company        string           `json:"company"`
	PropertyCode   string           `json:"property_code"`
	CurrentBalance decimal.Decimal  `json:"current_balance"`
	CreditBalance  decimal.Decimal  `json:"credit_balance"`
	PendingAmount  decimal.Decimal  `json:"pending_amount"`
	OverdueAmount  decimal.Decimal  `json:"overdue_amount"`
	Frequency      BillingFrequency `json:"billing_frequency"`
	BillingDay     int              `json:"billing_day"`
	Status         AccountStatus    `json:"status"`
	YTDPaid        decimal.Decimal  `json:"ytd_paid"`
	YTDInvoiced    decimal.Decimal  `json:"ytd_invoiced"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Validate enforces account invariants on create/save.
func (a *PropertyAccount) Validate() error {
	if a.Company == "" {
		return &ErrValidation{Field: "company", Message: "required"}
	}
	if a.PropertyCode == "" {
		return &ErrValidation{Field: "property_code", Message: "required"}
	}
	if a.BillingDay < 1 || a.BillingDay > 28 {
		return &ErrValidation{Field: "billing_day", Message: "must be within [1, 28]"}
	}
	switch a.Frequency {
	case FreqMonthly, FreqBimonthly, FreqQuarterly, FreqSemiannual, FreqAnnual:
	default:
		return &ErrValidation{Field: "billing_frequency", Message: "unknown frequency"}
	}
	if a.CreditBalance.IsNegative() {
		return &ErrValidation{Field: "credit_balance", Message: "must not be negative"}
	}
	return nil
}

// RecordInvoice applies a newly generated invoice to the account balance.
// Debts are stored as negative balances. Blocked while suspended.
func (a *PropertyAccount) RecordInvoice(amount decimal.Decimal) error {
	if a.Status == AccountSuspended {
		return &ErrAccountSuspended{AccountID: a.ID}
	}
	if a.Status == AccountClosed {
		return &ErrStateTransition{Entity: "property_account", From: string(a.Status), To: "invoiced"}
	}
	a.CurrentBalance = a.CurrentBalance.Sub(amount)
	a.YTDInvoiced = a.YTDInvoiced.Add(amount)
	return nil
}

// ApplyPayment credits the account with an applied payment amount.
// Allowed even while suspended.
func (a *PropertyAccount) ApplyPayment(amount decimal.Decimal) {
	a.CurrentBalance = a.CurrentBalance.Add(amount)
	a.YTDPaid = a.YTDPaid.Add(amount)
}

// ============================================================
// Resident Account
// ============================================================

// ResidentKind classifies who the resident is relative to the property.
type ResidentKind string

const (
	ResidentOwner  ResidentKind = "owner"
	ResidentTenant ResidentKind = "tenant"
	ResidentFamily ResidentKind = "family"
	ResidentGuest  ResidentKind = "guest"
)

// ResidentAccount is a secondary ledger for an individual resident on a
// property. Several may exist per property account.
type ResidentAccount struct {
	ID                string          `json:"id"`
	PropertyAccountID string          `json:"property_account_id"`
	Name              string          `json:"name"`
	Kind              ResidentKind    `json:"kind"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	CreditLimit       decimal.Decimal `json:"credit_limit"`
	SpendingLimit     decimal.Decimal `json:"spending_limit"`
	ApprovalThreshold decimal.Decimal `json:"approval_threshold"`
	LoyaltyPoints     int64           `json:"loyalty_points"`
	Status            AccountStatus   `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Validate enforces resident account invariants.
func (r *ResidentAccount) Validate() error {
	if r.PropertyAccountID == "" {
		return &ErrValidation{Field: "property_account_id", Message: "required"}
	}
	switch r.Kind {
	case ResidentOwner, ResidentTenant, ResidentFamily, ResidentGuest:
	default:
		return &ErrValidation{Field: "kind", Message: "unknown resident kind"}
	}
	if r.CreditLimit.IsNegative() {
		return &ErrValidation{Field: "credit_limit", Message: "must not be negative"}
	}
	if r.SpendingLimit.IsNegative() {
		return &ErrValidation{Field: "spending_limit", Message: "must not be negative"}
	}
	return nil
}

// debt returns the resident's outstanding debt (zero when in credit).
func (r *ResidentAccount) debt() decimal.Decimal {
	if r.CurrentBalance.IsNegative() {
		return r.CurrentBalance.Neg()
	}
	return decimal.Zero
}

// AvailableCredit is max(credit_limit - debt, 0).
func (r *ResidentAccount) AvailableCredit() decimal.Decimal {
	avail := r.CreditLimit.Sub(r.debt())
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// UtilizationPercent is debt / credit_limit * 100, or 0 without a limit.
func (r *ResidentAccount) UtilizationPercent() decimal.Decimal {
	if !r.CreditLimit.IsPositive() {
		return decimal.Zero
	}
	return r.debt().Div(r.CreditLimit).Mul(Hundred)
}
