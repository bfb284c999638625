package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error types for consistent error handling across the ledger core.

// ErrNotFound indicates a referenced record is missing.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a business rule was violated on create/save.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrStateTransition indicates an attempted illegal status transition.
type ErrStateTransition struct {
	Entity string
	From   string
	To     string
}

func (e *ErrStateTransition) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// ErrConcurrency indicates a lost update on an account balance.
// Policy: retry once, then surface.
type ErrConcurrency struct {
	Resource string
	ID       string
}

func (e *ErrConcurrency) Error() string {
	return fmt.Sprintf("concurrent update on %s %s", e.Resource, e.ID)
}

// ErrConfig indicates a fee structure is missing or inactive for the
// requested date.
type ErrConfig struct {
	Company string
	Message string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Company, e.Message)
}

// ErrForbidden indicates the caller lacks the capability for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrNoOwnershipShare indicates a per-share fee was requested for a
// property without an ownership percentage.
type ErrNoOwnershipShare struct {
	PropertyCode string
}

func (e *ErrNoOwnershipShare) Error() string {
	return fmt.Sprintf("property %s has no ownership share", e.PropertyCode)
}

// ErrAccountSuspended blocks invoice recording on a suspended account.
// Payment application and credit consumption remain allowed.
type ErrAccountSuspended struct {
	AccountID string
}

func (e *ErrAccountSuspended) Error() string {
	return fmt.Sprintf("account suspended: %s", e.AccountID)
}

// ErrHasPayments indicates a billing cycle cannot be cancelled because at
// least one of its invoices has received a payment.
type ErrHasPayments struct {
	CycleID string
}

func (e *ErrHasPayments) Error() string {
	return fmt.Sprintf("cycle %s has invoices with payments", e.CycleID)
}

// ErrInsufficientCredit indicates a credit operation exceeds the remaining
// balance.
type ErrInsufficientCredit struct {
	CreditID  string
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *ErrInsufficientCredit) Error() string {
	return fmt.Sprintf("credit %s: remaining=%s requested=%s",
		e.CreditID, e.Remaining.StringFixed(2), e.Requested.StringFixed(2))
}

// ErrDuplicate indicates a uniqueness invariant was violated.
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate record: %s", e.Key)
}

// ErrUnauthorized indicates missing or invalid credentials.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
