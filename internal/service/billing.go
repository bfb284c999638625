package service

import (
	"context"
	"fmt"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var billingTracer = otel.Tracer("service/billing")

// ============================================================
// Billing Cycles
// ============================================================

// CreateCycle stores a new billing cycle in draft status.
func (s *LedgerService) CreateCycle(ctx context.Context, c *domain.BillingCycle) (*domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.CreateCycle")
	defer span.End()

	c.Status = domain.CycleDraft
	c.GenerationStatus = domain.GenerationPending
	if c.GraceDays == 0 {
		c.GraceDays = s.policy.DefaultGraceDays
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	overlapping, err := s.store.ListOverlappingCycles(ctx, c.Company, c.StartDate, c.EndDate, c.ID)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, &domain.ErrValidation{Field: "start_date", Message: "cycle window overlaps cycle " + overlapping[0].ID}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.clock.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.store.CreateCycle(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *LedgerService) GetCycle(ctx context.Context, id string) (*domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.GetCycle")
	defer span.End()

	return s.store.GetCycle(ctx, id)
}

func (s *LedgerService) ListCycles(ctx context.Context, company string) ([]domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.ListCycles")
	defer span.End()

	return s.store.ListCycles(ctx, company)
}

// ScheduleCycle moves a draft cycle to scheduled, refusing overlaps with
// other non-cancelled cycles of the company.
func (s *LedgerService) ScheduleCycle(ctx context.Context, id string) (*domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.ScheduleCycle")
	defer span.End()

	var scheduled *domain.BillingCycle
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.store.GetCycle(ctx, id)
		if err != nil {
			return err
		}
		overlapping, err := s.store.ListOverlappingCycles(ctx, c.Company, c.StartDate, c.EndDate, c.ID)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return &domain.ErrValidation{Field: "start_date", Message: "cycle window overlaps cycle " + overlapping[0].ID}
		}
		if err := c.Transition(domain.CycleScheduled); err != nil {
			return err
		}
		c.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateCycle(ctx, c); err != nil {
			return err
		}
		scheduled = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scheduled, nil
}

// ActivateCycle moves a scheduled cycle to active.
func (s *LedgerService) ActivateCycle(ctx context.Context, id string) (*domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.ActivateCycle")
	defer span.End()

	return s.transitionCycle(ctx, id, domain.CycleActive)
}

// CloseCycle completes an invoiced cycle after refreshing its collection
// metrics one last time.
func (s *LedgerService) CloseCycle(ctx context.Context, id string) (*domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.CloseCycle")
	defer span.End()

	if _, err := s.UpdateCollectionMetrics(ctx, id); err != nil {
		return nil, err
	}
	return s.transitionCycle(ctx, id, domain.CycleCompleted)
}

func (s *LedgerService) transitionCycle(ctx context.Context, id string, to domain.CycleStatus) (*domain.BillingCycle, error) {
	var updated *domain.BillingCycle
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.store.GetCycle(ctx, id)
		if err != nil {
			return err
		}
		if err := c.Transition(to); err != nil {
			return err
		}
		c.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateCycle(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelCycle cancels a cycle and its invoices, restoring the invoiced
// amounts to the accounts. Refused once any invoice has received a payment.
func (s *LedgerService) CancelCycle(ctx context.Context, id string) (*domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.CancelCycle")
	defer span.End()
	span.SetAttributes(attribute.String("cycle.id", id))

	var cancelled *domain.BillingCycle
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.store.GetCycle(ctx, id)
		if err != nil {
			return err
		}
		invoices, err := s.store.ListInvoicesByCycle(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if inv.Paid.IsPositive() {
				return &domain.ErrHasPayments{CycleID: c.ID}
			}
		}
		if err := c.Transition(domain.CycleCancelled); err != nil {
			return err
		}

		now := s.clock.Now()
		for i := range invoices {
			inv := &invoices[i]
			if inv.Status == domain.InvoiceCancelled {
				continue
			}
			a, err := s.store.GetPropertyAccount(ctx, inv.AccountID)
			if err != nil {
				return err
			}
			a.CurrentBalance = a.CurrentBalance.Add(inv.Outstanding)
			a.YTDInvoiced = a.YTDInvoiced.Sub(inv.Amount)
			a.UpdatedAt = now
			if err := s.store.UpdatePropertyAccount(ctx, a); err != nil {
				return err
			}
			inv.Status = domain.InvoiceCancelled
			inv.Outstanding = decimal.Zero
			inv.UpdatedAt = now
			if err := s.store.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
		}
		c.UpdatedAt = now
		if err := s.store.UpdateCycle(ctx, c); err != nil {
			return err
		}
		cancelled = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("billing cycle cancelled", zap.String("cycle_id", id))
	return cancelled, nil
}

// ============================================================
// Invoice generation
// ============================================================

// GenerateInvoices emits one invoice per active account of the cycle's
// company. Each account commits in its own transaction; one failing
// account never rolls back the others. Reruns after a partial failure are
// idempotent because invoice creation is unique per (cycle, account).
func (s *LedgerService) GenerateInvoices(ctx context.Context, cycleID string) (*domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.GenerateInvoices")
	defer span.End()
	span.SetAttributes(attribute.String("cycle.id", cycleID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("generate_invoices", time.Since(start)) }()

	cycle, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Status != domain.CycleActive {
		return nil, &domain.ErrStateTransition{Entity: "billing_cycle", From: string(cycle.Status), To: string(domain.CycleInvoiced)}
	}
	if cycle.GenerationStatus != domain.GenerationPending && cycle.GenerationStatus != domain.GenerationError {
		return nil, &domain.ErrStateTransition{Entity: "billing_cycle", From: string(cycle.GenerationStatus), To: string(domain.GenerationInProgress)}
	}

	structure, err := s.store.GetFeeStructure(ctx, cycle.FeeStructureID)
	if err != nil {
		return nil, err
	}
	if !structure.ActiveOn(cycle.StartDate) {
		return nil, &domain.ErrConfig{Company: cycle.Company, Message: "fee structure " + structure.ID + " not active on cycle start"}
	}
	overlapping, err := s.store.ListOverlappingCycles(ctx, cycle.Company, cycle.StartDate, cycle.EndDate, cycle.ID)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, &domain.ErrValidation{Field: "start_date", Message: "cycle window overlaps cycle " + overlapping[0].ID}
	}

	cycle.GenerationStatus = domain.GenerationInProgress
	cycle.GeneratedCount = 0
	cycle.FailedCount = 0
	cycle.Failures = nil
	cycle.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateCycle(ctx, cycle); err != nil {
		return nil, err
	}

	// Ascending by account ID; reruns and partial recoveries walk the
	// same sequence.
	accounts, err := s.store.ListActiveAccounts(ctx, cycle.Company)
	if err != nil {
		return nil, err
	}

	for i := range accounts {
		accountID := accounts[i].ID

		// A cancel between accounts leaves every processed account
		// committed and the cycle retryable in error status.
		if err := ctx.Err(); err != nil {
			cycle.GenerationStatus = domain.GenerationError
			cycle.UpdatedAt = s.clock.Now()
			if saveErr := s.store.UpdateCycle(context.WithoutCancel(ctx), cycle); saveErr != nil {
				s.logger.Error("saving interrupted cycle", zap.Error(saveErr))
			}
			return nil, err
		}

		unlock := s.locks.Acquire(accountID)
		genErr := s.store.WithinTx(ctx, func(ctx context.Context) error {
			return s.generateOne(ctx, cycle, structure, accountID)
		})
		unlock()

		if genErr != nil {
			cycle.FailedCount++
			cycle.Failures = append(cycle.Failures, domain.GenerationFailure{
				AccountID: accountID,
				Message:   genErr.Error(),
			})
			s.metrics.IncrGenerationError(cycle.Company)
			s.logger.Warn("invoice generation failed for account",
				zap.String("cycle_id", cycle.ID),
				zap.String("account_id", accountID),
				zap.Error(genErr))
			continue
		}
		cycle.GeneratedCount++
		s.metrics.IncrInvoicesGenerated(cycle.Company)
	}

	if cycle.FailedCount == 0 {
		cycle.GenerationStatus = domain.GenerationDone
		if err := cycle.Transition(domain.CycleInvoiced); err != nil {
			return nil, err
		}
	} else {
		cycle.GenerationStatus = domain.GenerationError
	}
	cycle.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateCycle(ctx, cycle); err != nil {
		return nil, err
	}
	if _, err := s.UpdateCollectionMetrics(ctx, cycle.ID); err != nil {
		return nil, err
	}
	return s.store.GetCycle(ctx, cycle.ID)
}

// generateOne emits the invoice for a single account inside its own
// transaction, then draws down consumable credits FIFO against it.
func (s *LedgerService) generateOne(ctx context.Context, cycle *domain.BillingCycle, structure *domain.FeeStructure, accountID string) error {
	a, err := s.store.GetPropertyAccount(ctx, accountID)
	if err != nil {
		return err
	}

	// Idempotent rerun: the invoice may already exist from a previous
	// attempt.
	if _, err := s.store.GetInvoiceByCycleAndAccount(ctx, cycle.ID, accountID); err == nil {
		return nil
	}

	p, err := s.store.GetProperty(ctx, a.Company, a.PropertyCode)
	if err != nil {
		return err
	}
	fee, err := structure.FeeFor(p)
	if err != nil {
		return err
	}

	if err := a.RecordInvoice(fee.Total); err != nil {
		return err
	}
	now := s.clock.Now()
	inv := &domain.Invoice{
		ID:          uuid.NewString(),
		CycleID:     cycle.ID,
		AccountID:   a.ID,
		Company:     a.Company,
		Amount:      fee.Total,
		DueDate:     cycle.DueDate,
		Paid:        decimal.Zero,
		Outstanding: fee.Total,
		Status:      domain.InvoiceOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return err
	}

	if err := s.applyCredits(ctx, a, inv); err != nil {
		return err
	}
	a.UpdatedAt = now
	return s.store.UpdatePropertyAccount(ctx, a)
}

// applyCredits draws the account's auto-apply credits against the invoice
// in FIFO-by-creation order until one of them runs out.
func (s *LedgerService) applyCredits(ctx context.Context, a *domain.PropertyAccount, inv *domain.Invoice) error {
	credits, err := s.store.ListConsumableCredits(ctx, a.ID, s.clock.Today())
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for i := range credits {
		if !inv.Outstanding.IsPositive() {
			break
		}
		cb := &credits[i]
		amount := decimal.Min(cb.Remaining, inv.Outstanding)
		if err := cb.Consume(amount); err != nil {
			return err
		}
		inv.Settle(amount)
		a.CurrentBalance = a.CurrentBalance.Add(amount)
		a.CreditBalance = a.CreditBalance.Sub(amount)
		cb.UpdatedAt = now
		if err := s.store.UpdateCredit(ctx, cb); err != nil {
			return err
		}
		s.logger.Debug("credit applied to invoice",
			zap.String("credit_id", cb.ID),
			zap.String("invoice_id", inv.ID),
			zap.String("amount", amount.StringFixed(2)))
	}
	inv.UpdatedAt = now
	return s.store.UpdateInvoice(ctx, inv)
}

// ListOpenInvoices returns the account's open invoices oldest-first, the
// same order payment allocation walks them.
func (s *LedgerService) ListOpenInvoices(ctx context.Context, accountID string) ([]domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.ListOpenInvoices")
	defer span.End()

	return s.store.ListOpenInvoicesByAccount(ctx, accountID)
}

// GetInvoice returns a single invoice.
func (s *LedgerService) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.GetInvoice")
	defer span.End()

	return s.store.GetInvoice(ctx, id)
}

// ListCycleInvoices returns every invoice of a cycle.
func (s *LedgerService) ListCycleInvoices(ctx context.Context, cycleID string) ([]domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.ListCycleInvoices")
	defer span.End()

	if _, err := s.store.GetCycle(ctx, cycleID); err != nil {
		return nil, err
	}
	return s.store.ListInvoicesByCycle(ctx, cycleID)
}

// ============================================================
// Collection metrics and reminders
// ============================================================

// UpdateCollectionMetrics re-derives the cycle's collection figures from
// its invoices. Triggered after generation, payment posting and close.
func (s *LedgerService) UpdateCollectionMetrics(ctx context.Context, cycleID string) (*domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.UpdateCollectionMetrics")
	defer span.End()

	today := s.clock.Today()
	var updated *domain.BillingCycle
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.store.GetCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		invoices, err := s.store.ListInvoicesByCycle(ctx, c.ID)
		if err != nil {
			return err
		}
		total, paid, pending, overdue := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
		for _, inv := range invoices {
			if inv.Status == domain.InvoiceCancelled {
				continue
			}
			total = total.Add(inv.Amount)
			paid = paid.Add(inv.Paid)
			pending = pending.Add(inv.Outstanding)
			if inv.DueDate.Before(today) {
				overdue = overdue.Add(inv.Outstanding)
			}
		}
		c.TotalInvoiced = total
		c.PaidAmount = paid
		c.PendingAmount = pending
		c.OverdueAmount = overdue
		if total.IsPositive() {
			c.CollectionRate = domain.RoundMoney(paid.Div(total).Mul(domain.Hundred))
		} else {
			c.CollectionRate = decimal.Zero
		}
		c.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateCycle(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SendReminders delivers one reminder per open invoice of the cycle.
// Idempotent per day: a second request on the same day is a no-op.
// Delivery failures are logged and counted, never fatal.
func (s *LedgerService) SendReminders(ctx context.Context, cycleID string) (*domain.BillingCycle, error) {
	ctx, span := billingTracer.Start(ctx, "LedgerService.SendReminders")
	defer span.End()
	span.SetAttributes(attribute.String("cycle.id", cycleID))

	cycle, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()
	if cycle.LastReminderSent != nil && !cycle.LastReminderSent.Before(today) {
		return cycle, nil
	}

	invoices, err := s.store.ListInvoicesByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range invoices {
		inv := invoices[i]
		if inv.Status != domain.InvoiceOpen {
			continue
		}
		g.Go(func() error {
			if err := s.bulkhead.Acquire(gctx); err != nil {
				return err
			}
			defer s.bulkhead.Release()

			msg := fmt.Sprintf("Invoice %s for %s is due on %s: %s outstanding.",
				inv.ID, cycle.Name, inv.DueDate.Format("2006-01-02"), inv.Outstanding.StringFixed(2))
			if err := s.reminders.SendReminder(gctx, inv.AccountID, inv.ID, msg); err != nil {
				s.metrics.IncrReminderSent("failed")
				s.logger.Warn("reminder delivery failed",
					zap.String("invoice_id", inv.ID),
					zap.Error(err))
				return nil
			}
			s.metrics.IncrReminderSent("delivered")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	cycle.LastReminderSent = &now
	cycle.UpdatedAt = now
	if err := s.store.UpdateCycle(ctx, cycle); err != nil {
		return nil, err
	}
	return cycle, nil
}
