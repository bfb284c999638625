package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Credit Balance
// ============================================================

// CreditStatus is the consumption state of a credit balance.
type CreditStatus string

const (
	CreditActive           CreditStatus = "active"
	CreditPartiallyApplied CreditStatus = "partially_applied"
	CreditFullyApplied     CreditStatus = "fully_applied"
	CreditExpired          CreditStatus = "expired"
	CreditCancelled        CreditStatus = "cancelled"
)

// CreditBalance tracks unconsumed payer surplus held against an account.
// 0 <= Remaining <= Original at all times; fully applied exactly when
// Remaining reaches zero.
type CreditBalance struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	Company         string          `json:"company"`
	SourcePaymentID string          `json:"source_payment_id,omitempty"`
	Original        decimal.Decimal `json:"original"`
	Remaining       decimal.Decimal `json:"remaining"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	Status          CreditStatus    `json:"status"`
	AutoApply       bool            `json:"auto_apply"`
	Transferable    bool            `json:"transferable"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Consumable reports whether the credit can be drawn down on the given day.
func (cb *CreditBalance) Consumable(today time.Time) bool {
	if cb.Status != CreditActive && cb.Status != CreditPartiallyApplied {
		return false
	}
	if !cb.Remaining.IsPositive() {
		return false
	}
	if cb.ExpiryDate != nil && cb.ExpiryDate.Before(today) {
		return false
	}
	return true
}

// Consume draws amount from the credit and updates its status.
func (cb *CreditBalance) Consume(amount decimal.Decimal) error {
	if amount.GreaterThan(cb.Remaining) {
		return &ErrInsufficientCredit{CreditID: cb.ID, Remaining: cb.Remaining, Requested: amount}
	}
	cb.Remaining = cb.Remaining.Sub(amount)
	if cb.Remaining.IsZero() {
		cb.Status = CreditFullyApplied
	} else {
		cb.Status = CreditPartiallyApplied
	}
	return nil
}

// Expire marks the credit expired. Only reachable when the expiry date has
// passed and value remains. Credits stay consumable through their expiry
// day and expire the day after.
func (cb *CreditBalance) Expire(today time.Time) error {
	if cb.ExpiryDate == nil || !cb.ExpiryDate.Before(today) || !cb.Remaining.IsPositive() {
		return &ErrStateTransition{Entity: "credit_balance", From: string(cb.Status), To: string(CreditExpired)}
	}
	cb.Status = CreditExpired
	return nil
}
