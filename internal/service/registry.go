package service

import (
	"context"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var registryTracer = otel.Tracer("service/registry")

// ============================================================
// Property Registry
// ============================================================

// RegisterProperty validates and stores a new property.
func (s *LedgerService) RegisterProperty(ctx context.Context, p *domain.Property) (*domain.Property, error) {
	ctx, span := registryTracer.Start(ctx, "LedgerService.RegisterProperty")
	defer span.End()
	span.SetAttributes(attribute.String("property.code", p.Code))

	if p.Status == "" {
		p.Status = domain.PropertyActive
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.store.CreateProperty(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("property registered",
		zap.String("company", p.Company),
		zap.String("code", p.Code))
	return p, nil
}

func (s *LedgerService) GetProperty(ctx context.Context, company, code string) (*domain.Property, error) {
	ctx, span := registryTracer.Start(ctx, "LedgerService.GetProperty")
	defer span.End()

	return s.store.GetProperty(ctx, company, code)
}

func (s *LedgerService) ListProperties(ctx context.Context, company string) ([]domain.Property, error) {
	ctx, span := registryTracer.Start(ctx, "LedgerService.ListProperties")
	defer span.End()

	return s.store.ListProperties(ctx, company)
}

// UpdateProperty replaces the mutable fields of an existing property.
// Creation time and identity are preserved.
func (s *LedgerService) UpdateProperty(ctx context.Context, p *domain.Property) (*domain.Property, error) {
	ctx, span := registryTracer.Start(ctx, "LedgerService.UpdateProperty")
	defer span.End()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.store.GetProperty(ctx, p.Company, p.Code)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateProperty(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveProperty deletes a property that has no account tied to it.
func (s *LedgerService) RemoveProperty(ctx context.Context, company, code string) error {
	ctx, span := registryTracer.Start(ctx, "LedgerService.RemoveProperty")
	defer span.End()

	if _, err := s.store.GetAccountByProperty(ctx, company, code); err == nil {
		return &domain.ErrValidation{Field: "code", Message: "property has an account; close it first"}
	}
	return s.store.DeleteProperty(ctx, company, code)
}
