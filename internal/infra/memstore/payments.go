package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// ============================================================
// PaymentStore
// ============================================================

func (s *Store) CreatePayment(ctx context.Context, p *domain.PaymentCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID]; exists {
		return &domain.ErrDuplicate{Key: "payment " + p.ID}
	}
	s.payments[p.ID] = copyPayment(p)
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.PaymentCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "payment", ID: id}
	}
	return copyPayment(p), nil
}

func (s *Store) ListPaymentsByAccount(ctx context.Context, accountID string) ([]domain.PaymentCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PaymentCollection
	for _, p := range s.payments {
		if p.AccountID == accountID {
			out = append(out, *copyPayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *domain.PaymentCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.ID]; !ok {
		return &domain.ErrNotFound{Resource: "payment", ID: p.ID}
	}
	s.payments[p.ID] = copyPayment(p)
	return nil
}

func copyPayment(p *domain.PaymentCollection) *domain.PaymentCollection {
	cp := *p
	cp.Allocations = append([]domain.Allocation(nil), p.Allocations...)
	if p.ReversedAt != nil {
		t := *p.ReversedAt
		cp.ReversedAt = &t
	}
	return &cp
}

// ============================================================
// CreditStore
// ============================================================

func (s *Store) CreateCredit(ctx context.Context, cb *domain.CreditBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.credits[cb.ID]; exists {
		return &domain.ErrDuplicate{Key: "credit balance " + cb.ID}
	}
	s.credits[cb.ID] = copyCredit(cb)
	s.nextSeq(cb.ID)
	return nil
}

func (s *Store) GetCredit(ctx context.Context, id string) (*domain.CreditBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cb, ok := s.credits[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "credit_balance", ID: id}
	}
	return copyCredit(cb), nil
}

func (s *Store) ListCreditsByAccount(ctx context.Context, accountID string) ([]domain.CreditBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CreditBalance
	for _, cb := range s.credits {
		if cb.AccountID == accountID {
			out = append(out, *copyCredit(cb))
		}
	}
	s.sortFIFO(out)
	return out, nil
}

func (s *Store) ListConsumableCredits(ctx context.Context, accountID string, today time.Time) ([]domain.CreditBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CreditBalance
	for _, cb := range s.credits {
		if cb.AccountID == accountID && cb.AutoApply && cb.Consumable(today) {
			out = append(out, *copyCredit(cb))
		}
	}
	s.sortFIFO(out)
	return out, nil
}

func (s *Store) ListExpiredCredits(ctx context.Context, asOf time.Time) ([]domain.CreditBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CreditBalance
	for _, cb := range s.credits {
		if cb.Status != domain.CreditActive && cb.Status != domain.CreditPartiallyApplied {
			continue
		}
		if cb.ExpiryDate != nil && cb.ExpiryDate.Before(asOf) && cb.Remaining.IsPositive() {
			out = append(out, *copyCredit(cb))
		}
	}
	s.sortFIFO(out)
	return out, nil
}

func (s *Store) ListExpiringCredits(ctx context.Context, company string, horizon time.Time) ([]domain.CreditBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CreditBalance
	for _, cb := range s.credits {
		if cb.Company != company {
			continue
		}
		if cb.Status != domain.CreditActive && cb.Status != domain.CreditPartiallyApplied {
			continue
		}
		if cb.ExpiryDate != nil && !cb.ExpiryDate.After(horizon) && cb.Remaining.IsPositive() {
			out = append(out, *copyCredit(cb))
		}
	}
	s.sortFIFO(out)
	return out, nil
}

func (s *Store) UpdateCredit(ctx context.Context, cb *domain.CreditBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credits[cb.ID]; !ok {
		return &domain.ErrNotFound{Resource: "credit_balance", ID: cb.ID}
	}
	s.credits[cb.ID] = copyCredit(cb)
	return nil
}

func (s *Store) sortFIFO(credits []domain.CreditBalance) {
	sort.Slice(credits, func(i, j int) bool {
		return s.ord[credits[i].ID] < s.ord[credits[j].ID]
	})
}

func copyCredit(cb *domain.CreditBalance) *domain.CreditBalance {
	cp := *cb
	if cb.ExpiryDate != nil {
		t := *cb.ExpiryDate
		cp.ExpiryDate = &t
	}
	return &cp
}

// ============================================================
// FineStore
// ============================================================

func (s *Store) CreateFine(ctx context.Context, f *domain.Fine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.fines[f.ID]; exists {
		return &domain.ErrDuplicate{Key: "fine " + f.ID}
	}
	cp := *f
	s.fines[f.ID] = &cp
	return nil
}

func (s *Store) GetFine(ctx context.Context, id string) (*domain.Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fines[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "fine", ID: id}
	}
	cp := *f
	return &cp, nil
}

func (s *Store) ListFinesByAccount(ctx context.Context, accountID string) ([]domain.Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Fine
	for _, f := range s.fines {
		if f.AccountID == accountID {
			out = append(out, *f)
		}
	}
	sortFinesOldestFirst(out)
	return out, nil
}

func (s *Store) ListOpenFinesByAccount(ctx context.Context, accountID string) ([]domain.Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Fine
	for _, f := range s.fines {
		if f.AccountID == accountID && f.Open() && f.Outstanding().IsPositive() {
			out = append(out, *f)
		}
	}
	sortFinesOldestFirst(out)
	return out, nil
}

func (s *Store) ListOpenFinesByCompany(ctx context.Context, company string) ([]domain.Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Fine
	for _, f := range s.fines {
		if f.Company == company && f.Open() {
			out = append(out, *f)
		}
	}
	sortFinesOldestFirst(out)
	return out, nil
}

func (s *Store) UpdateFine(ctx context.Context, f *domain.Fine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fines[f.ID]; !ok {
		return &domain.ErrNotFound{Resource: "fine", ID: f.ID}
	}
	cp := *f
	s.fines[f.ID] = &cp
	return nil
}

func sortFinesOldestFirst(fines []domain.Fine) {
	sort.Slice(fines, func(i, j int) bool {
		if !fines[i].DueDate.Equal(fines[j].DueDate) {
			return fines[i].DueDate.Before(fines[j].DueDate)
		}
		return fines[i].ID < fines[j].ID
	})
}
