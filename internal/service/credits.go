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

var creditTracer = otel.Tracer("service/credits")

// ============================================================
// Credit Balances
// ============================================================

// GrantCredit manually creates a credit balance on an account, e.g. a
// goodwill adjustment. Expiry follows the configured policy.
func (s *LedgerService) GrantCredit(ctx context.Context, accountID string, amount decimal.Decimal, autoApply bool) (*domain.CreditBalance, error) {
	ctx, span := creditTracer.Start(ctx, "LedgerService.GrantCredit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if !amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	unlock := s.locks.Acquire(accountID)
	defer unlock()

	var created *domain.CreditBalance
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.store.GetPropertyAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a.Status == domain.AccountClosed {
			return &domain.ErrStateTransition{Entity: "property_account", From: string(a.Status), To: "credited"}
		}
		now := s.clock.Now()
		expiry := s.clock.Today().AddDate(0, s.policy.CreditExpiryMonths, 0)
		cb := &domain.CreditBalance{
			ID:           uuid.NewString(),
			AccountID:    a.ID,
			Company:      a.Company,
			Original:     amount,
			Remaining:    amount,
			ExpiryDate:   &expiry,
			Status:       domain.CreditActive,
			AutoApply:    autoApply,
			Transferable: true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.CreateCredit(ctx, cb); err != nil {
			return err
		}
		a.CreditBalance = a.CreditBalance.Add(amount)
		a.UpdatedAt = now
		if err := s.store.UpdatePropertyAccount(ctx, a); err != nil {
			return err
		}
		created = cb
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrCreditCreated()
	return created, nil
}

func (s *LedgerService) GetCredit(ctx context.Context, id string) (*domain.CreditBalance, error) {
	ctx, span := creditTracer.Start(ctx, "LedgerService.GetCredit")
	defer span.End()

	return s.store.GetCredit(ctx, id)
}

func (s *LedgerService) ListCredits(ctx context.Context, accountID string) ([]domain.CreditBalance, error) {
	ctx, span := creditTracer.Start(ctx, "LedgerService.ListCredits")
	defer span.End()

	return s.store.ListCreditsByAccount(ctx, accountID)
}

// SweepExpiredCredits moves every credit past its expiry date to expired
// and removes its remaining value from the account total. Run daily; safe
// to run repeatedly. Returns the number of credits expired.
func (s *LedgerService) SweepExpiredCredits(ctx context.Context) (int, error) {
	ctx, span := creditTracer.Start(ctx, "LedgerService.SweepExpiredCredits")
	defer span.End()

	today := s.clock.Today()
	expired, err := s.store.ListExpiredCredits(ctx, today)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		cb := expired[i]

		if err := ctx.Err(); err != nil {
			return count, err
		}

		unlock := s.locks.Acquire(cb.AccountID)
		sweepErr := s.store.WithinTx(ctx, func(ctx context.Context) error {
			fresh, err := s.store.GetCredit(ctx, cb.ID)
			if err != nil {
				return err
			}
			forfeited := fresh.Remaining
			if err := fresh.Expire(today); err != nil {
				return err
			}
			fresh.UpdatedAt = s.clock.Now()
			if err := s.store.UpdateCredit(ctx, fresh); err != nil {
				return err
			}
			a, err := s.store.GetPropertyAccount(ctx, fresh.AccountID)
			if err != nil {
				return err
			}
			a.CreditBalance = a.CreditBalance.Sub(forfeited)
			a.UpdatedAt = s.clock.Now()
			return s.store.UpdatePropertyAccount(ctx, a)
		})
		unlock()

		if sweepErr != nil {
			s.logger.Warn("credit expiry failed",
				zap.String("credit_id", cb.ID), zap.Error(sweepErr))
			continue
		}
		count++
		s.metrics.IncrCreditExpired()
	}
	if count > 0 {
		s.logger.Info("expired credits swept", zap.Int("count", count))
	}
	return count, nil
}

// TransferCredit moves value from a transferable credit to another account
// in the same company, as a fresh credit balance on the target.
func (s *LedgerService) TransferCredit(ctx context.Context, sourceID, targetAccountID string, amount decimal.Decimal) (*domain.CreditBalance, error) {
	ctx, span := creditTracer.Start(ctx, "LedgerService.TransferCredit")
	defer span.End()
	span.SetAttributes(attribute.String("credit.id", sourceID))

	if !amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	source, err := s.store.GetCredit(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	// Both account locks, ascending, before the transaction.
	unlock := s.locks.Acquire(source.AccountID, targetAccountID)
	defer unlock()

	var created *domain.CreditBalance
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		cb, err := s.store.GetCredit(ctx, sourceID)
		if err != nil {
			return err
		}
		if !cb.Transferable {
			return &domain.ErrForbidden{Action: "transfer non-transferable credit"}
		}
		if !cb.Consumable(s.clock.Today()) {
			return &domain.ErrStateTransition{Entity: "credit_balance", From: string(cb.Status), To: "transferred"}
		}
		target, err := s.store.GetPropertyAccount(ctx, targetAccountID)
		if err != nil {
			return err
		}
		if target.Company != cb.Company {
			return &domain.ErrValidation{Field: "target_account_id", Message: "target account belongs to another company"}
		}
		if target.Status == domain.AccountClosed {
			return &domain.ErrStateTransition{Entity: "property_account", From: string(target.Status), To: "credited"}
		}
		if err := cb.Consume(amount); err != nil {
			return err
		}
		now := s.clock.Now()
		cb.UpdatedAt = now
		if err := s.store.UpdateCredit(ctx, cb); err != nil {
			return err
		}

		src, err := s.store.GetPropertyAccount(ctx, cb.AccountID)
		if err != nil {
			return err
		}
		src.CreditBalance = src.CreditBalance.Sub(amount)
		src.UpdatedAt = now
		if err := s.store.UpdatePropertyAccount(ctx, src); err != nil {
			return err
		}

		out := &domain.CreditBalance{
			ID:           uuid.NewString(),
			AccountID:    target.ID,
			Company:      target.Company,
			Original:     amount,
			Remaining:    amount,
			ExpiryDate:   cb.ExpiryDate,
			Status:       domain.CreditActive,
			AutoApply:    cb.AutoApply,
			Transferable: true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.CreateCredit(ctx, out); err != nil {
			return err
		}
		target.CreditBalance = target.CreditBalance.Add(amount)
		target.UpdatedAt = now
		if err := s.store.UpdatePropertyAccount(ctx, target); err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrCreditCreated()
	s.logger.Info("credit transferred",
		zap.String("source_credit", sourceID),
		zap.String("target_account", targetAccountID),
		zap.String("amount", amount.StringFixed(2)))
	return created, nil
}

// ReinstateCredit restores an expired credit with a fresh expiry window.
// Admin-only; the approver identity is recorded in the log.
func (s *LedgerService) ReinstateCredit(ctx context.Context, id, approvedBy string) (*domain.CreditBalance, error) {
	ctx, span := creditTracer.Start(ctx, "LedgerService.ReinstateCredit")
	defer span.End()
	span.SetAttributes(attribute.String("credit.id", id))

	if approvedBy == "" {
		return nil, &domain.ErrForbidden{Action: "reinstate credit"}
	}

	cb, err := s.store.GetCredit(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Acquire(cb.AccountID)
	defer unlock()

	var reinstated *domain.CreditBalance
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		cb, err := s.store.GetCredit(ctx, id)
		if err != nil {
			return err
		}
		if cb.Status != domain.CreditExpired {
			return &domain.ErrStateTransition{Entity: "credit_balance", From: string(cb.Status), To: string(domain.CreditActive)}
		}
		now := s.clock.Now()
		expiry := s.clock.Today().AddDate(0, s.policy.CreditExpiryMonths, 0)
		cb.Status = domain.CreditActive
		cb.ExpiryDate = &expiry
		cb.UpdatedAt = now
		if err := s.store.UpdateCredit(ctx, cb); err != nil {
			return err
		}
		a, err := s.store.GetPropertyAccount(ctx, cb.AccountID)
		if err != nil {
			return err
		}
		a.CreditBalance = a.CreditBalance.Add(cb.Remaining)
		a.UpdatedAt = now
		if err := s.store.UpdatePropertyAccount(ctx, a); err != nil {
			return err
		}
		reinstated = cb
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("credit reinstated",
		zap.String("credit_id", id),
		zap.String("approved_by", approvedBy))
	return reinstated, nil
}
