package service

import (
	"context"
	"strconv"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var fineTracer = otel.Tracer("service/fines")

// ============================================================
// Fine Management
// ============================================================

// IssueFine records a new penalty against an account.
func (s *LedgerService) IssueFine(ctx context.Context, f *domain.Fine) (*domain.Fine, error) {
	ctx, span := fineTracer.Start(ctx, "LedgerService.IssueFine")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", f.AccountID))

	if f.IssueDate.IsZero() {
		f.IssueDate = s.clock.Today()
	}
	if f.DueDate.IsZero() {
		f.DueDate = f.IssueDate.AddDate(0, 0, s.policy.DefaultGraceDays)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	a, err := s.store.GetPropertyAccount(ctx, f.AccountID)
	if err != nil {
		return nil, err
	}
	if a.Status == domain.AccountClosed {
		return nil, &domain.ErrStateTransition{Entity: "property_account", From: string(a.Status), To: "fined"}
	}
	f.Company = a.Company
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.Status = domain.FinePending
	f.Level = 0
	f.TotalAmount = domain.RoundMoney(f.OriginalAmount)
	f.PaidAmount = decimal.Zero
	now := s.clock.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	if err := s.store.CreateFine(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info("fine issued",
		zap.String("fine_id", f.ID),
		zap.String("account_id", f.AccountID),
		zap.String("category", string(f.Category)),
		zap.String("amount", f.OriginalAmount.StringFixed(2)))
	return f, nil
}

func (s *LedgerService) GetFine(ctx context.Context, id string) (*domain.Fine, error) {
	ctx, span := fineTracer.Start(ctx, "LedgerService.GetFine")
	defer span.End()

	return s.store.GetFine(ctx, id)
}

func (s *LedgerService) ListFines(ctx context.Context, accountID string) ([]domain.Fine, error) {
	ctx, span := fineTracer.Start(ctx, "LedgerService.ListFines")
	defer span.End()

	return s.store.ListFinesByAccount(ctx, accountID)
}

// AssessFine evaluates a fine's escalation as of now without persisting.
func (s *LedgerService) AssessFine(ctx context.Context, id string) (*domain.FineAssessment, error) {
	ctx, span := fineTracer.Start(ctx, "LedgerService.AssessFine")
	defer span.End()

	f, err := s.store.GetFine(ctx, id)
	if err != nil {
		return nil, err
	}
	assessment := f.Evaluate(s.clock.Now(), s.policy.Escalation)
	return &assessment, nil
}

// EscalateFines walks the company's open fines and persists any escalation
// the ladder prescribes. Run daily; safe to run repeatedly. Returns the
// number of fines escalated.
func (s *LedgerService) EscalateFines(ctx context.Context, company string) (int, error) {
	ctx, span := fineTracer.Start(ctx, "LedgerService.EscalateFines")
	defer span.End()
	span.SetAttributes(attribute.String("company", company))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("escalate_fines", time.Since(start)) }()

	fines, err := s.store.ListOpenFinesByCompany(ctx, company)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()

	count := 0
	for i := range fines {
		f := fines[i]

		if err := ctx.Err(); err != nil {
			return count, err
		}

		assessment := f.Evaluate(now, s.policy.Escalation)
		if assessment.Level == f.Level && assessment.Total.Equal(f.TotalAmount) {
			continue
		}

		escErr := s.store.WithinTx(ctx, func(ctx context.Context) error {
			fresh, err := s.store.GetFine(ctx, f.ID)
			if err != nil {
				return err
			}
			if !fresh.Open() {
				return nil
			}
			levelRaised := assessment.Level > fresh.Level
			fresh.Level = assessment.Level
			fresh.Interest = assessment.Interest
			fresh.AdminFees = assessment.AdminFees
			fresh.LegalFees = assessment.LegalFees
			fresh.CollectionFees = assessment.CollectionFees
			fresh.TotalAmount = assessment.Total
			if fresh.Status == domain.FinePending && fresh.Level > 0 {
				fresh.Status = domain.FineOverdue
			}
			fresh.UpdatedAt = now
			if err := s.store.UpdateFine(ctx, fresh); err != nil {
				return err
			}
			if levelRaised {
				s.metrics.IncrFineEscalated(strconv.Itoa(fresh.Level))
				s.logger.Info("fine escalated",
					zap.String("fine_id", fresh.ID),
					zap.Int("level", fresh.Level),
					zap.String("action", assessment.Action),
					zap.String("total", fresh.TotalAmount.StringFixed(2)))
			}
			return nil
		})
		if escErr != nil {
			s.logger.Warn("fine escalation failed",
				zap.String("fine_id", f.ID), zap.Error(escErr))
			continue
		}
		count++
	}
	return count, nil
}

// WaiveFine zeroes the outstanding and closes the fine without a payment.
// Admin-only; the approver is recorded on the fine.
func (s *LedgerService) WaiveFine(ctx context.Context, id, approvedBy string) (*domain.Fine, error) {
	ctx, span := fineTracer.Start(ctx, "LedgerService.WaiveFine")
	defer span.End()

	if approvedBy == "" {
		return nil, &domain.ErrForbidden{Action: "waive fine"}
	}
	var waived *domain.Fine
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.store.GetFine(ctx, id)
		if err != nil {
			return err
		}
		if !f.Open() && f.Status != domain.FineDisputed {
			return &domain.ErrStateTransition{Entity: "fine", From: string(f.Status), To: string(domain.FineWaived)}
		}
		f.Status = domain.FineWaived
		f.WaivedBy = approvedBy
		f.TotalAmount = f.PaidAmount
		f.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateFine(ctx, f); err != nil {
			return err
		}
		waived = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("fine waived",
		zap.String("fine_id", id),
		zap.String("approved_by", approvedBy))
	return waived, nil
}

// WriteOffFine abandons collection on an open fine. Unlike a waiver the
// total stays on record as the written-off loss. Admin-only; the approver
// is recorded on the fine.
func (s *LedgerService) WriteOffFine(ctx context.Context, id, approvedBy string) (*domain.Fine, error) {
	ctx, span := fineTracer.Start(ctx, "LedgerService.WriteOffFine")
	defer span.End()

	if approvedBy == "" {
		return nil, &domain.ErrForbidden{Action: "write off fine"}
	}
	var written *domain.Fine
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.store.GetFine(ctx, id)
		if err != nil {
			return err
		}
		if !f.Open() {
			return &domain.ErrStateTransition{Entity: "fine", From: string(f.Status), To: string(domain.FineWrittenOff)}
		}
		f.Status = domain.FineWrittenOff
		f.WrittenOffBy = approvedBy
		f.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateFine(ctx, f); err != nil {
			return err
		}
		written = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("fine written off",
		zap.String("fine_id", id),
		zap.String("approved_by", approvedBy))
	return written, nil
}

// DisputeFine freezes an open fine while the dispute is resolved.
func (s *LedgerService) DisputeFine(ctx context.Context, id, disputedBy string) (*domain.Fine, error) {
	ctx, span := fineTracer.Start(ctx, "LedgerService.DisputeFine")
	defer span.End()

	if disputedBy == "" {
		return nil, &domain.ErrForbidden{Action: "dispute fine"}
	}
	var disputed *domain.Fine
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.store.GetFine(ctx, id)
		if err != nil {
			return err
		}
		if !f.Open() {
			return &domain.ErrStateTransition{Entity: "fine", From: string(f.Status), To: string(domain.FineDisputed)}
		}
		f.Status = domain.FineDisputed
		f.DisputedBy = disputedBy
		f.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateFine(ctx, f); err != nil {
			return err
		}
		disputed = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return disputed, nil
}

// ResolveDispute reopens a disputed fine (upheld) so escalation and
// payment application resume.
func (s *LedgerService) ResolveDispute(ctx context.Context, id, approvedBy string) (*domain.Fine, error) {
	ctx, span := fineTracer.Start(ctx, "LedgerService.ResolveDispute")
	defer span.End()

	if approvedBy == "" {
		return nil, &domain.ErrForbidden{Action: "resolve dispute"}
	}
	var resolved *domain.Fine
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.store.GetFine(ctx, id)
		if err != nil {
			return err
		}
		if f.Status != domain.FineDisputed {
			return &domain.ErrStateTransition{Entity: "fine", From: string(f.Status), To: string(domain.FineOverdue)}
		}
		if f.PaidAmount.IsPositive() {
			f.Status = domain.FinePartiallyPaid
		} else if f.Level > 0 {
			f.Status = domain.FineOverdue
		} else {
			f.Status = domain.FinePending
		}
		f.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateFine(ctx, f); err != nil {
			return err
		}
		resolved = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}
