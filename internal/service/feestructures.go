package service

import (
	"context"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var feeTracer = otel.Tracer("service/feestructures")

// ============================================================
// Fee Structures
// ============================================================

// CreateFeeStructure stores a new structure in draft status.
func (s *LedgerService) CreateFeeStructure(ctx context.Context, fs *domain.FeeStructure) (*domain.FeeStructure, error) {
	ctx, span := feeTracer.Start(ctx, "LedgerService.CreateFeeStructure")
	defer span.End()

	fs.Status = domain.StructureDraft
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	if fs.ID == "" {
		fs.ID = uuid.NewString()
	}
	now := s.clock.Now()
	fs.CreatedAt = now
	fs.UpdatedAt = now
	if err := s.store.CreateFeeStructure(ctx, fs); err != nil {
		return nil, err
	}
	return fs, nil
}

func (s *LedgerService) GetFeeStructure(ctx context.Context, id string) (*domain.FeeStructure, error) {
	ctx, span := feeTracer.Start(ctx, "LedgerService.GetFeeStructure")
	defer span.End()

	return s.store.GetFeeStructure(ctx, id)
}

func (s *LedgerService) ListFeeStructures(ctx context.Context, company string) ([]domain.FeeStructure, error) {
	ctx, span := feeTracer.Start(ctx, "LedgerService.ListFeeStructures")
	defer span.End()

	return s.store.ListFeeStructures(ctx, company)
}

// UpdateFeeStructure edits a structure. Only drafts are editable; submitted
// structures are immutable policy.
func (s *LedgerService) UpdateFeeStructure(ctx context.Context, fs *domain.FeeStructure) (*domain.FeeStructure, error) {
	ctx, span := feeTracer.Start(ctx, "LedgerService.UpdateFeeStructure")
	defer span.End()

	existing, err := s.store.GetFeeStructure(ctx, fs.ID)
	if err != nil {
		return nil, err
	}
	if existing.Status != domain.StructureDraft {
		return nil, &domain.ErrStateTransition{Entity: "fee_structure", From: string(existing.Status), To: "edited"}
	}
	fs.Status = domain.StructureDraft
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	fs.CreatedAt = existing.CreatedAt
	fs.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateFeeStructure(ctx, fs); err != nil {
		return nil, err
	}
	s.structCache.Purge()
	return fs, nil
}

// SubmitFeeStructure promotes a draft to submitted and supersedes any
// previously submitted structure whose effective window overlaps it.
func (s *LedgerService) SubmitFeeStructure(ctx context.Context, id string) (*domain.FeeStructure, error) {
	ctx, span := feeTracer.Start(ctx, "LedgerService.SubmitFeeStructure")
	defer span.End()
	span.SetAttributes(attribute.String("structure.id", id))

	var submitted *domain.FeeStructure
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		fs, err := s.store.GetFeeStructure(ctx, id)
		if err != nil {
			return err
		}
		if fs.Status != domain.StructureDraft {
			return &domain.ErrStateTransition{Entity: "fee_structure", From: string(fs.Status), To: string(domain.StructureSubmitted)}
		}

		others, err := s.store.ListFeeStructures(ctx, fs.Company)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for i := range others {
			other := &others[i]
			if other.ID == fs.ID || other.Status != domain.StructureSubmitted {
				continue
			}
			if !windowsOverlap(fs.EffectiveFrom, fs.EffectiveTo, other.EffectiveFrom, other.EffectiveTo) {
				continue
			}
			other.Status = domain.StructureSuperseded
			other.UpdatedAt = now
			if err := s.store.UpdateFeeStructure(ctx, other); err != nil {
				return err
			}
			s.logger.Info("fee structure superseded",
				zap.String("company", fs.Company),
				zap.String("superseded", other.ID),
				zap.String("by", fs.ID))
		}

		fs.Status = domain.StructureSubmitted
		fs.UpdatedAt = now
		if err := s.store.UpdateFeeStructure(ctx, fs); err != nil {
			return err
		}
		submitted = fs
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.structCache.Purge()
	return submitted, nil
}

// QuoteFee computes the fee a property would be charged on the given date.
func (s *LedgerService) QuoteFee(ctx context.Context, company, propertyCode string, date time.Time) (*domain.FeeBreakdown, error) {
	ctx, span := feeTracer.Start(ctx, "LedgerService.QuoteFee")
	defer span.End()

	p, err := s.store.GetProperty(ctx, company, propertyCode)
	if err != nil {
		return nil, err
	}
	fs, err := s.resolveStructure(ctx, company, date)
	if err != nil {
		return nil, err
	}
	return fs.FeeFor(p)
}

// resolveStructure finds the submitted structure active on the date,
// preferring the most recent effective window. Results are cached per
// company and date.
func (s *LedgerService) resolveStructure(ctx context.Context, company string, date time.Time) (*domain.FeeStructure, error) {
	key := company + "@" + date.UTC().Format("2006-01-02")
	if fs, ok := s.structCache.Get(key); ok {
		s.metrics.IncrCacheHit("fee_structure")
		return &fs, nil
	}
	s.metrics.IncrCacheMiss("fee_structure")

	candidates, err := s.store.ListSubmittedStructures(ctx, company, date)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].ActiveOn(date) {
			s.structCache.Set(key, candidates[i])
			return &candidates[i], nil
		}
	}
	return nil, &domain.ErrConfig{Company: company, Message: "no submitted fee structure active on " + date.Format("2006-01-02")}
}

func windowsOverlap(aFrom time.Time, aTo *time.Time, bFrom time.Time, bTo *time.Time) bool {
	if aTo != nil && aTo.Before(bFrom) {
		return false
	}
	if bTo != nil && bTo.Before(aFrom) {
		return false
	}
	return true
}
