package service

import (
	"context"
	"errors"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
	"github.com/arvetta/condo-ledger-go/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var paymentTracer = otel.Tracer("service/payments")

// ============================================================
// Payment Collection
// ============================================================

// SubmitPayment records an inbound payment in pending status.
func (s *LedgerService) SubmitPayment(ctx context.Context, p *domain.PaymentCollection) (*domain.PaymentCollection, error) {
	ctx, span := paymentTracer.Start(ctx, "LedgerService.SubmitPayment")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", p.AccountID))

	p.Status = domain.PaymentPending
	if err := p.Validate(); err != nil {
		return nil, err
	}
	a, err := s.store.GetPropertyAccount(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	p.Company = a.Company
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PostingDate.IsZero() {
		p.PostingDate = s.clock.Today()
	}
	now := s.clock.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *LedgerService) GetPayment(ctx context.Context, id string) (*domain.PaymentCollection, error) {
	ctx, span := paymentTracer.Start(ctx, "LedgerService.GetPayment")
	defer span.End()

	return s.store.GetPayment(ctx, id)
}

func (s *LedgerService) ListPaymentsByAccount(ctx context.Context, accountID string) ([]domain.PaymentCollection, error) {
	ctx, span := paymentTracer.Start(ctx, "LedgerService.ListPaymentsByAccount")
	defer span.End()

	return s.store.ListPaymentsByAccount(ctx, accountID)
}

// RejectPayment refuses a pending payment.
func (s *LedgerService) RejectPayment(ctx context.Context, id string) (*domain.PaymentCollection, error) {
	ctx, span := paymentTracer.Start(ctx, "LedgerService.RejectPayment")
	defer span.End()

	var rejected *domain.PaymentCollection
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.store.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != domain.PaymentPending {
			return &domain.ErrStateTransition{Entity: "payment", From: string(p.Status), To: string(domain.PaymentRejected)}
		}
		p.Status = domain.PaymentRejected
		p.UpdatedAt = s.clock.Now()
		if err := s.store.UpdatePayment(ctx, p); err != nil {
			return err
		}
		rejected = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrPaymentProcessed("rejected")
	return rejected, nil
}

// ProcessPayment applies a pending payment to the account's open invoices
// and fines oldest-first, turning any surplus into an auto-apply credit
// balance. The account is locked for the whole allocation so concurrent
// payments serialize; a lost update is retried once before surfacing.
func (s *LedgerService) ProcessPayment(ctx context.Context, id string) (*domain.PaymentCollection, error) {
	ctx, span := paymentTracer.Start(ctx, "LedgerService.ProcessPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", id))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("process_payment", time.Since(start)) }()

	var processed *domain.PaymentCollection
	err := resilience.RetryOnce(ctx, func() error {
		p, err := s.store.GetPayment(ctx, id)
		if err != nil {
			return err
		}

		unlock := s.locks.Acquire(p.AccountID)
		defer unlock()

		return s.store.WithinTx(ctx, func(ctx context.Context) error {
			p, err := s.store.GetPayment(ctx, id)
			if err != nil {
				return err
			}
			if p.Status != domain.PaymentPending {
				return &domain.ErrStateTransition{Entity: "payment", From: string(p.Status), To: string(domain.PaymentProcessed)}
			}
			a, err := s.store.GetPropertyAccount(ctx, p.AccountID)
			if err != nil {
				return err
			}
			if a.Status == domain.AccountClosed {
				return &domain.ErrStateTransition{Entity: "property_account", From: string(a.Status), To: "paid"}
			}

			if err := s.allocate(ctx, p, a); err != nil {
				return err
			}

			a.ApplyPayment(p.Gross)
			a.UpdatedAt = s.clock.Now()
			if err := s.store.UpdatePropertyAccount(ctx, a); err != nil {
				return err
			}

			p.Status = domain.PaymentProcessed
			p.UpdatedAt = s.clock.Now()
			if err := s.store.UpdatePayment(ctx, p); err != nil {
				return err
			}
			processed = p
			return nil
		})
	}, func(err error) bool {
		var conc *domain.ErrConcurrency
		return errors.As(err, &conc)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrPaymentProcessed("processed")
	s.metrics.AddAmountCollected(processed.Company, processed.Gross)
	s.logger.Info("payment processed",
		zap.String("payment_id", processed.ID),
		zap.String("account_id", processed.AccountID),
		zap.String("gross", processed.Gross.StringFixed(2)),
		zap.String("surplus", processed.Surplus.StringFixed(2)))

	// Refresh metrics on every cycle the allocation touched.
	for _, cycleID := range s.touchedCycles(ctx, processed) {
		if _, err := s.UpdateCollectionMetrics(ctx, cycleID); err != nil {
			s.logger.Warn("updating cycle metrics after payment",
				zap.String("cycle_id", cycleID), zap.Error(err))
		}
	}
	return processed, nil
}

// allocate walks open invoices then open fines oldest-first, settling each
// with what remains of the gross amount. Leftover becomes a credit.
func (s *LedgerService) allocate(ctx context.Context, p *domain.PaymentCollection, a *domain.PropertyAccount) error {
	remaining := p.Gross
	now := s.clock.Now()

	invoices, err := s.store.ListOpenInvoicesByAccount(ctx, a.ID)
	if err != nil {
		return err
	}
	for i := range invoices {
		if !remaining.IsPositive() {
			break
		}
		inv := &invoices[i]
		amount := decimal.Min(remaining, inv.Outstanding)
		inv.Settle(amount)
		inv.UpdatedAt = now
		if err := s.store.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		remaining = remaining.Sub(amount)
		p.Allocations = append(p.Allocations, domain.Allocation{
			Target:   domain.TargetInvoice,
			TargetID: inv.ID,
			Amount:   amount,
		})
	}

	fines, err := s.store.ListOpenFinesByAccount(ctx, a.ID)
	if err != nil {
		return err
	}
	for i := range fines {
		if !remaining.IsPositive() {
			break
		}
		f := &fines[i]
		amount := decimal.Min(remaining, f.Outstanding())
		f.PaidAmount = f.PaidAmount.Add(amount)
		if f.Outstanding().IsZero() {
			f.Status = domain.FinePaid
		} else {
			f.Status = domain.FinePartiallyPaid
		}
		f.UpdatedAt = now
		if err := s.store.UpdateFine(ctx, f); err != nil {
			return err
		}
		remaining = remaining.Sub(amount)
		p.Allocations = append(p.Allocations, domain.Allocation{
			Target:   domain.TargetFine,
			TargetID: f.ID,
			Amount:   amount,
		})
	}

	p.Surplus = remaining
	if remaining.IsPositive() {
		expiry := p.PostingDate.AddDate(0, s.policy.CreditExpiryMonths, 0)
		cb := &domain.CreditBalance{
			ID:              uuid.NewString(),
			AccountID:       a.ID,
			Company:         a.Company,
			SourcePaymentID: p.ID,
			Original:        remaining,
			Remaining:       remaining,
			ExpiryDate:      &expiry,
			Status:          domain.CreditActive,
			AutoApply:       true,
			Transferable:    true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.CreateCredit(ctx, cb); err != nil {
			return err
		}
		p.CreditBalanceID = cb.ID
		a.CreditBalance = a.CreditBalance.Add(remaining)
		s.metrics.IncrCreditCreated()
	}
	return nil
}

// ReversePayment undoes a processed payment: every allocation is mirrored
// by a negative row, settled targets re-open, and the surplus credit is
// cancelled. Refused when the surplus credit has already been partially
// consumed, since the consumed value cannot be clawed back.
func (s *LedgerService) ReversePayment(ctx context.Context, id, approvedBy string) (*domain.PaymentCollection, error) {
	ctx, span := paymentTracer.Start(ctx, "LedgerService.ReversePayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", id))

	if approvedBy == "" {
		return nil, &domain.ErrForbidden{Action: "reverse payment"}
	}

	target, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Acquire(target.AccountID)
	defer unlock()

	var reversed *domain.PaymentCollection
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.store.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != domain.PaymentProcessed {
			return &domain.ErrStateTransition{Entity: "payment", From: string(p.Status), To: string(domain.PaymentReversed)}
		}
		a, err := s.store.GetPropertyAccount(ctx, p.AccountID)
		if err != nil {
			return err
		}
		now := s.clock.Now()

		if p.CreditBalanceID != "" {
			cb, err := s.store.GetCredit(ctx, p.CreditBalanceID)
			if err != nil {
				return err
			}
			if cb.Remaining.LessThan(p.Surplus) {
				return &domain.ErrStateTransition{Entity: "credit_balance", From: string(cb.Status), To: string(domain.CreditCancelled)}
			}
			cb.Status = domain.CreditCancelled
			cb.Remaining = decimal.Zero
			cb.UpdatedAt = now
			if err := s.store.UpdateCredit(ctx, cb); err != nil {
				return err
			}
			a.CreditBalance = a.CreditBalance.Sub(p.Surplus)
		}

		original := p.Allocations
		for _, alloc := range original {
			switch alloc.Target {
			case domain.TargetInvoice:
				inv, err := s.store.GetInvoice(ctx, alloc.TargetID)
				if err != nil {
					return err
				}
				inv.Reopen(alloc.Amount)
				inv.UpdatedAt = now
				if err := s.store.UpdateInvoice(ctx, inv); err != nil {
					return err
				}
			case domain.TargetFine:
				f, err := s.store.GetFine(ctx, alloc.TargetID)
				if err != nil {
					return err
				}
				f.PaidAmount = f.PaidAmount.Sub(alloc.Amount)
				switch {
				case f.PaidAmount.IsPositive():
					f.Status = domain.FinePartiallyPaid
				case f.Level > 0:
					f.Status = domain.FineOverdue
				default:
					f.Status = domain.FinePending
				}
				f.UpdatedAt = now
				if err := s.store.UpdateFine(ctx, f); err != nil {
					return err
				}
			}
			p.Allocations = append(p.Allocations, domain.Allocation{
				Target:   alloc.Target,
				TargetID: alloc.TargetID,
				Amount:   alloc.Amount.Neg(),
			})
		}

		a.ApplyPayment(p.Gross.Neg())
		a.UpdatedAt = now
		if err := s.store.UpdatePropertyAccount(ctx, a); err != nil {
			return err
		}

		p.Status = domain.PaymentReversed
		p.ReversedAt = &now
		p.UpdatedAt = now
		if err := s.store.UpdatePayment(ctx, p); err != nil {
			return err
		}
		reversed = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrPaymentProcessed("reversed")
	s.logger.Info("payment reversed",
		zap.String("payment_id", id),
		zap.String("approved_by", approvedBy))

	for _, cycleID := range s.touchedCycles(ctx, reversed) {
		if _, err := s.UpdateCollectionMetrics(ctx, cycleID); err != nil {
			s.logger.Warn("updating cycle metrics after reversal",
				zap.String("cycle_id", cycleID), zap.Error(err))
		}
	}
	return reversed, nil
}

// touchedCycles returns the distinct cycles of the payment's invoice
// allocations.
func (s *LedgerService) touchedCycles(ctx context.Context, p *domain.PaymentCollection) []string {
	seen := make(map[string]bool)
	var out []string
	for _, alloc := range p.Allocations {
		if alloc.Target != domain.TargetInvoice {
			continue
		}
		inv, err := s.store.GetInvoice(ctx, alloc.TargetID)
		if err != nil {
			continue
		}
		if !seen[inv.CycleID] {
			seen[inv.CycleID] = true
			out = append(out, inv.CycleID)
		}
	}
	return out
}
