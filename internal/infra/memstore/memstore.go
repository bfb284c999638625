// Package memstore is an in-memory record store used in dev mode and by
// tests. It implements every store port with copy-in/copy-out semantics so
// callers never alias stored records, and a coarse store-wide mutex as the
// transaction scope.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// Store holds all records behind one RWMutex.
type Store struct {
	mu sync.RWMutex

	properties map[string]*domain.Property // keyed by company + "/" + code
	structures map[string]*domain.FeeStructure
	accounts   map[string]*domain.PropertyAccount
	residents  map[string]*domain.ResidentAccount
	cycles     map[string]*domain.BillingCycle
	invoices   map[string]*domain.Invoice
	payments   map[string]*domain.PaymentCollection
	credits    map[string]*domain.CreditBalance
	fines      map[string]*domain.Fine

	seq int64 // creation order for FIFO credit listing
	ord map[string]int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		properties: make(map[string]*domain.Property),
		structures: make(map[string]*domain.FeeStructure),
		accounts:   make(map[string]*domain.PropertyAccount),
		residents:  make(map[string]*domain.ResidentAccount),
		cycles:     make(map[string]*domain.BillingCycle),
		invoices:   make(map[string]*domain.Invoice),
		payments:   make(map[string]*domain.PaymentCollection),
		credits:    make(map[string]*domain.CreditBalance),
		fines:      make(map[string]*domain.Fine),
		ord:        make(map[string]int64),
	}
}

// WithinTx runs fn directly: the memstore has no transaction scope, only
// per-call atomicity from the store mutex each method takes. Callers that
// mutate several entities rely on the service-level account locks for
// isolation; rollback semantics exist only in the sqlite store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func propertyKey(company, code string) string { return company + "/" + code }

func (s *Store) nextSeq(id string) {
	s.seq++
	s.ord[id] = s.seq
}

// ============================================================
// RegistryStore
// ============================================================

func (s *Store) CreateProperty(ctx context.Context, p *domain.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := propertyKey(p.Company, p.Code)
	if _, exists := s.properties[key]; exists {
		return &domain.ErrDuplicate{Key: "property " + key}
	}
	cp := *p
	cp.Owners = append([]domain.OwnershipEntry(nil), p.Owners...)
	s.properties[key] = &cp
	return nil
}

func (s *Store) GetProperty(ctx context.Context, company, code string) (*domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.properties[propertyKey(company, code)]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "property", ID: code}
	}
	cp := *p
	cp.Owners = append([]domain.OwnershipEntry(nil), p.Owners...)
	return &cp, nil
}

func (s *Store) ListProperties(ctx context.Context, company string) ([]domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Property
	for _, p := range s.properties {
		if p.Company == company {
			cp := *p
			cp.Owners = append([]domain.OwnershipEntry(nil), p.Owners...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) UpdateProperty(ctx context.Context, p *domain.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := propertyKey(p.Company, p.Code)
	if _, ok := s.properties[key]; !ok {
		return &domain.ErrNotFound{Resource: "property", ID: p.Code}
	}
	cp := *p
	cp.Owners = append([]domain.OwnershipEntry(nil), p.Owners...)
	s.properties[key] = &cp
	return nil
}

func (s *Store) DeleteProperty(ctx context.Context, company, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := propertyKey(company, code)
	if _, ok := s.properties[key]; !ok {
		return &domain.ErrNotFound{Resource: "property", ID: code}
	}
	delete(s.properties, key)
	return nil
}

// ============================================================
// FeeStructureStore
// ============================================================

func (s *Store) CreateFeeStructure(ctx context.Context, fs *domain.FeeStructure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.structures[fs.ID]; exists {
		return &domain.ErrDuplicate{Key: "fee structure " + fs.ID}
	}
	cp := copyStructure(fs)
	s.structures[fs.ID] = cp
	return nil
}

func (s *Store) GetFeeStructure(ctx context.Context, id string) (*domain.FeeStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fs, ok := s.structures[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "fee_structure", ID: id}
	}
	return copyStructure(fs), nil
}

func (s *Store) ListFeeStructures(ctx context.Context, company string) ([]domain.FeeStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.FeeStructure
	for _, fs := range s.structures {
		if fs.Company == company {
			out = append(out, *copyStructure(fs))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSubmittedStructures(ctx context.Context, company string, date time.Time) ([]domain.FeeStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.FeeStructure
	for _, fs := range s.structures {
		if fs.Company == company && fs.ActiveOn(date) {
			out = append(out, *copyStructure(fs))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateFeeStructure(ctx context.Context, fs *domain.FeeStructure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.structures[fs.ID]; !ok {
		return &domain.ErrNotFound{Resource: "fee_structure", ID: fs.ID}
	}
	s.structures[fs.ID] = copyStructure(fs)
	return nil
}

func copyStructure(fs *domain.FeeStructure) *domain.FeeStructure {
	cp := *fs
	cp.Components = append([]domain.FeeComponent(nil), fs.Components...)
	if fs.EffectiveTo != nil {
		to := *fs.EffectiveTo
		cp.EffectiveTo = &to
	}
	return &cp
}

// ============================================================
// AccountStore
// ============================================================

func (s *Store) CreatePropertyAccount(ctx context.Context, a *domain.PropertyAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return &domain.ErrDuplicate{Key: "property account " + a.ID}
	}
	for _, other := range s.accounts {
		if other.Company == a.Company && other.PropertyCode == a.PropertyCode {
			return &domain.ErrDuplicate{Key: "account for property " + a.PropertyCode}
		}
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *Store) GetPropertyAccount(ctx context.Context, id string) (*domain.PropertyAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "property_account", ID: id}
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetAccountByProperty(ctx context.Context, company, propertyCode string) (*domain.PropertyAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Company == company && a.PropertyCode == propertyCode {
			cp := *a
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "property_account", ID: propertyCode}
}

func (s *Store) ListAccounts(ctx context.Context, company string) ([]domain.PropertyAccount, error) {
	return s.listAccounts(company, false)
}

func (s *Store) ListActiveAccounts(ctx context.Context, company string) ([]domain.PropertyAccount, error) {
	return s.listAccounts(company, true)
}

func (s *Store) listAccounts(company string, activeOnly bool) ([]domain.PropertyAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PropertyAccount
	for _, a := range s.accounts {
		if a.Company != company {
			continue
		}
		if activeOnly && a.Status != domain.AccountActive {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdatePropertyAccount(ctx context.Context, a *domain.PropertyAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; !ok {
		return &domain.ErrNotFound{Resource: "property_account", ID: a.ID}
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *Store) CreateResidentAccount(ctx context.Context, r *domain.ResidentAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.residents[r.ID]; exists {
		return &domain.ErrDuplicate{Key: "resident account " + r.ID}
	}
	cp := *r
	s.residents[r.ID] = &cp
	return nil
}

func (s *Store) GetResidentAccount(ctx context.Context, id string) (*domain.ResidentAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.residents[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "resident_account", ID: id}
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListResidentsByAccount(ctx context.Context, accountID string) ([]domain.ResidentAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ResidentAccount
	for _, r := range s.residents {
		if r.PropertyAccountID == accountID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateResidentAccount(ctx context.Context, r *domain.ResidentAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.residents[r.ID]; !ok {
		return &domain.ErrNotFound{Resource: "resident_account", ID: r.ID}
	}
	cp := *r
	s.residents[r.ID] = &cp
	return nil
}
