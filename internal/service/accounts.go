package service

import (
	"context"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var accountTracer = otel.Tracer("service/accounts")

// ============================================================
// Property Accounts
// ============================================================

// OpenAccount creates the ledger account for a registered property.
// One account per property.
func (s *LedgerService) OpenAccount(ctx context.Context, a *domain.PropertyAccount) (*domain.PropertyAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.OpenAccount")
	defer span.End()
	span.SetAttributes(attribute.String("property.code", a.PropertyCode))

	if a.Status == "" {
		a.Status = domain.AccountActive
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetProperty(ctx, a.Company, a.PropertyCode); err != nil {
		return nil, err
	}
	if existing, err := s.store.GetAccountByProperty(ctx, a.Company, a.PropertyCode); err == nil {
		return nil, &domain.ErrDuplicate{Key: "account " + existing.ID + " for property " + a.PropertyCode}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := s.clock.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.store.CreatePropertyAccount(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("account opened",
		zap.String("account_id", a.ID),
		zap.String("property_code", a.PropertyCode))
	return a, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, id string) (*domain.PropertyAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.GetAccount")
	defer span.End()

	return s.store.GetPropertyAccount(ctx, id)
}

func (s *LedgerService) ListAccounts(ctx context.Context, company string) ([]domain.PropertyAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.ListAccounts")
	defer span.End()

	return s.store.ListAccounts(ctx, company)
}

// SuspendAccount blocks invoice generation on the account. Payments and
// credit consumption stay allowed.
func (s *LedgerService) SuspendAccount(ctx context.Context, id string) (*domain.PropertyAccount, error) {
	return s.setAccountStatus(ctx, id, domain.AccountSuspended, "LedgerService.SuspendAccount")
}

// ReactivateAccount lifts a suspension.
func (s *LedgerService) ReactivateAccount(ctx context.Context, id string) (*domain.PropertyAccount, error) {
	return s.setAccountStatus(ctx, id, domain.AccountActive, "LedgerService.ReactivateAccount")
}

// CloseAccount permanently closes an account. Allowed only when the
// balance is zero, no invoice is still outstanding, and every resident
// ledger on the account is closed. Closed accounts accept no further
// operations.
func (s *LedgerService) CloseAccount(ctx context.Context, id string) (*domain.PropertyAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.CloseAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	unlock := s.locks.Acquire(id)
	defer unlock()

	var closed *domain.PropertyAccount
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.store.GetPropertyAccount(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == domain.AccountClosed {
			return &domain.ErrStateTransition{Entity: "property_account", From: string(a.Status), To: string(domain.AccountClosed)}
		}
		if !a.CurrentBalance.IsZero() {
			return &domain.ErrValidation{Field: "current_balance", Message: "must be zero to close, is " + a.CurrentBalance.StringFixed(2)}
		}
		open, err := s.store.ListOpenInvoicesByAccount(ctx, id)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return &domain.ErrValidation{Field: "invoices", Message: "invoice " + open[0].ID + " still has outstanding " + open[0].Outstanding.StringFixed(2)}
		}
		residents, err := s.store.ListResidentsByAccount(ctx, id)
		if err != nil {
			return err
		}
		for _, r := range residents {
			if r.Status != domain.AccountClosed {
				return &domain.ErrValidation{Field: "residents", Message: "resident account " + r.ID + " is still open"}
			}
		}
		a.Status = domain.AccountClosed
		a.UpdatedAt = s.clock.Now()
		if err := s.store.UpdatePropertyAccount(ctx, a); err != nil {
			return err
		}
		closed = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account closed", zap.String("account_id", id))
	return closed, nil
}

var accountTransitions = map[domain.AccountStatus][]domain.AccountStatus{
	domain.AccountActive:    {domain.AccountSuspended, domain.AccountClosed},
	domain.AccountSuspended: {domain.AccountActive, domain.AccountClosed},
	domain.AccountClosed:    {},
}

func (s *LedgerService) setAccountStatus(ctx context.Context, id string, to domain.AccountStatus, spanName string) (*domain.PropertyAccount, error) {
	ctx, span := accountTracer.Start(ctx, spanName)
	defer span.End()

	unlock := s.locks.Acquire(id)
	defer unlock()

	var updated *domain.PropertyAccount
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.store.GetPropertyAccount(ctx, id)
		if err != nil {
			return err
		}
		allowed := false
		for _, next := range accountTransitions[a.Status] {
			if next == to {
				allowed = true
				break
			}
		}
		if !allowed {
			return &domain.ErrStateTransition{Entity: "property_account", From: string(a.Status), To: string(to)}
		}
		a.Status = to
		a.UpdatedAt = s.clock.Now()
		if err := s.store.UpdatePropertyAccount(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecomputeAging re-derives the account's pending and overdue figures from
// its open invoices and its credit total from its consumable credits.
func (s *LedgerService) RecomputeAging(ctx context.Context, id string) (*domain.PropertyAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.RecomputeAging")
	defer span.End()

	unlock := s.locks.Acquire(id)
	defer unlock()

	today := s.clock.Today()
	var updated *domain.PropertyAccount
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.store.GetPropertyAccount(ctx, id)
		if err != nil {
			return err
		}
		invoices, err := s.store.ListOpenInvoicesByAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		pending := decimal.Zero
		overdue := decimal.Zero
		for _, inv := range invoices {
			pending = pending.Add(inv.Outstanding)
			if inv.DueDate.Before(today) {
				overdue = overdue.Add(inv.Outstanding)
			}
		}
		credits, err := s.store.ListCreditsByAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		credit := decimal.Zero
		for i := range credits {
			if credits[i].Consumable(today) {
				credit = credit.Add(credits[i].Remaining)
			}
		}
		a.PendingAmount = pending
		a.OverdueAmount = overdue
		a.CreditBalance = credit
		a.UpdatedAt = s.clock.Now()
		if err := s.store.UpdatePropertyAccount(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ============================================================
// Resident Accounts
// ============================================================

// AddResident attaches a resident ledger to a property account.
func (s *LedgerService) AddResident(ctx context.Context, r *domain.ResidentAccount) (*domain.ResidentAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.AddResident")
	defer span.End()

	if r.Status == "" {
		r.Status = domain.AccountActive
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPropertyAccount(ctx, r.PropertyAccountID); err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.clock.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.store.CreateResidentAccount(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *LedgerService) GetResident(ctx context.Context, id string) (*domain.ResidentAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.GetResident")
	defer span.End()

	return s.store.GetResidentAccount(ctx, id)
}

func (s *LedgerService) ListResidents(ctx context.Context, accountID string) ([]domain.ResidentAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.ListResidents")
	defer span.End()

	return s.store.ListResidentsByAccount(ctx, accountID)
}

// ChargeResident posts a charge against a resident ledger. Charges above
// the approval threshold require an approver; charges that would push debt
// past the credit limit or exceed the spending limit are refused.
func (s *LedgerService) ChargeResident(ctx context.Context, id string, amount decimal.Decimal, approvedBy string) (*domain.ResidentAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.ChargeResident")
	defer span.End()

	if !amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	var updated *domain.ResidentAccount
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.store.GetResidentAccount(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != domain.AccountActive {
			return &domain.ErrStateTransition{Entity: "resident_account", From: string(r.Status), To: "charged"}
		}
		if r.SpendingLimit.IsPositive() && amount.GreaterThan(r.SpendingLimit) {
			return &domain.ErrValidation{Field: "amount", Message: "exceeds spending limit"}
		}
		if r.ApprovalThreshold.IsPositive() && amount.GreaterThan(r.ApprovalThreshold) && approvedBy == "" {
			return &domain.ErrForbidden{Action: "charge above approval threshold"}
		}
		if amount.GreaterThan(r.AvailableCredit()) {
			return &domain.ErrValidation{Field: "amount", Message: "exceeds available credit"}
		}
		r.CurrentBalance = r.CurrentBalance.Sub(amount)
		r.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateResidentAccount(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CreditResident applies a resident payment and accrues loyalty points,
// one point per whole currency unit paid.
func (s *LedgerService) CreditResident(ctx context.Context, id string, amount decimal.Decimal) (*domain.ResidentAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.CreditResident")
	defer span.End()

	if !amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	var updated *domain.ResidentAccount
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.store.GetResidentAccount(ctx, id)
		if err != nil {
			return err
		}
		if r.Status == domain.AccountClosed {
			return &domain.ErrStateTransition{Entity: "resident_account", From: string(r.Status), To: "credited"}
		}
		r.CurrentBalance = r.CurrentBalance.Add(amount)
		r.LoyaltyPoints += amount.IntPart()
		r.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateResidentAccount(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CloseResident closes a resident ledger. Closable only at zero balance.
func (s *LedgerService) CloseResident(ctx context.Context, id string) (*domain.ResidentAccount, error) {
	ctx, span := accountTracer.Start(ctx, "LedgerService.CloseResident")
	defer span.End()

	var closed *domain.ResidentAccount
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.store.GetResidentAccount(ctx, id)
		if err != nil {
			return err
		}
		if r.Status == domain.AccountClosed {
			return &domain.ErrStateTransition{Entity: "resident_account", From: string(r.Status), To: string(domain.AccountClosed)}
		}
		if !r.CurrentBalance.IsZero() {
			return &domain.ErrValidation{Field: "current_balance", Message: "must be zero to close, is " + r.CurrentBalance.StringFixed(2)}
		}
		r.Status = domain.AccountClosed
		r.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateResidentAccount(ctx, r); err != nil {
			return err
		}
		closed = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}
