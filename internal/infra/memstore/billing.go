package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// ============================================================
// BillingStore: cycles
// ============================================================

func (s *Store) CreateCycle(ctx context.Context, c *domain.BillingCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cycles[c.ID]; exists {
		return &domain.ErrDuplicate{Key: "billing cycle " + c.ID}
	}
	s.cycles[c.ID] = copyCycle(c)
	return nil
}

func (s *Store) GetCycle(ctx context.Context, id string) (*domain.BillingCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cycles[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "billing_cycle", ID: id}
	}
	return copyCycle(c), nil
}

func (s *Store) ListCycles(ctx context.Context, company string) ([]domain.BillingCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.BillingCycle
	for _, c := range s.cycles {
		if c.Company == company {
			out = append(out, *copyCycle(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListOverlappingCycles(ctx context.Context, company string, start, end time.Time, excludeID string) ([]domain.BillingCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.BillingCycle
	for _, c := range s.cycles {
		if c.Company != company || c.ID == excludeID || c.Status == domain.CycleCancelled {
			continue
		}
		if c.Overlaps(start, end) {
			out = append(out, *copyCycle(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateCycle(ctx context.Context, c *domain.BillingCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cycles[c.ID]; !ok {
		return &domain.ErrNotFound{Resource: "billing_cycle", ID: c.ID}
	}
	s.cycles[c.ID] = copyCycle(c)
	return nil
}

func copyCycle(c *domain.BillingCycle) *domain.BillingCycle {
	cp := *c
	cp.Failures = append([]domain.GenerationFailure(nil), c.Failures...)
	if c.LastReminderSent != nil {
		t := *c.LastReminderSent
		cp.LastReminderSent = &t
	}
	return &cp
}

// ============================================================
// BillingStore: invoices
// ============================================================

func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID]; exists {
		return &domain.ErrDuplicate{Key: "invoice " + inv.ID}
	}
	for _, other := range s.invoices {
		if other.CycleID == inv.CycleID && other.AccountID == inv.AccountID {
			return &domain.ErrDuplicate{Key: "invoice for cycle " + inv.CycleID + " account " + inv.AccountID}
		}
	}
	cp := *inv
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	cp := *inv
	return &cp, nil
}

func (s *Store) GetInvoiceByCycleAndAccount(ctx context.Context, cycleID, accountID string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoices {
		if inv.CycleID == cycleID && inv.AccountID == accountID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "invoice", ID: cycleID + "/" + accountID}
}

func (s *Store) ListInvoicesByCycle(ctx context.Context, cycleID string) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Invoice
	for _, inv := range s.invoices {
		if inv.CycleID == cycleID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListOpenInvoicesByAccount(ctx context.Context, accountID string) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Invoice
	for _, inv := range s.invoices {
		if inv.AccountID == accountID && inv.Status == domain.InvoiceOpen && inv.Outstanding.IsPositive() {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[inv.ID]; !ok {
		return &domain.ErrNotFound{Resource: "invoice", ID: inv.ID}
	}
	cp := *inv
	s.invoices[inv.ID] = &cp
	return nil
}
