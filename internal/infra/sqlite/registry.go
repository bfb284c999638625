package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// ============================================================
// RegistryStore
// ============================================================

func (s *Store) CreateProperty(ctx context.Context, p *domain.Property) error {
	data, err := marshal(p)
	if err != nil {
		return err
	}
	var exists int
	err = s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE company = ? AND code = ?`,
		p.Company, p.Code).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return &domain.ErrDuplicate{Key: "property " + p.Company + "/" + p.Code}
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO properties (company, code, data) VALUES (?, ?, ?)`,
		p.Company, p.Code, data)
	return err
}

func (s *Store) GetProperty(ctx context.Context, company, code string) (*domain.Property, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM properties WHERE company = ? AND code = ?`,
		company, code).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "property", ID: code}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.Property](data)
}

func (s *Store) ListProperties(ctx context.Context, company string) ([]domain.Property, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM properties WHERE company = ? ORDER BY code`, company)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.Property](rows)
}

func (s *Store) UpdateProperty(ctx context.Context, p *domain.Property) error {
	data, err := marshal(p)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE properties SET data = ? WHERE company = ? AND code = ?`,
		data, p.Company, p.Code)
	if err != nil {
		return err
	}
	return requireRow(res, "property", p.Code)
}

func (s *Store) DeleteProperty(ctx context.Context, company, code string) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM properties WHERE company = ? AND code = ?`, company, code)
	if err != nil {
		return err
	}
	return requireRow(res, "property", code)
}

// ============================================================
// FeeStructureStore
// ============================================================

func (s *Store) CreateFeeStructure(ctx context.Context, fs *domain.FeeStructure) error {
	data, err := marshal(fs)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO fee_structures (id, company, status, effective_from, effective_to, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fs.ID, fs.Company, fs.Status, dateKey(fs.EffectiveFrom), dateKeyPtr(fs.EffectiveTo), data)
	if isUniqueViolation(err) {
		return &domain.ErrDuplicate{Key: "fee structure " + fs.ID}
	}
	return err
}

func (s *Store) GetFeeStructure(ctx context.Context, id string) (*domain.FeeStructure, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM fee_structures WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "fee_structure", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.FeeStructure](data)
}

func (s *Store) ListFeeStructures(ctx context.Context, company string) ([]domain.FeeStructure, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM fee_structures WHERE company = ? ORDER BY id`, company)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.FeeStructure](rows)
}

func (s *Store) ListSubmittedStructures(ctx context.Context, company string, date time.Time) ([]domain.FeeStructure, error) {
	key := dateKey(date)
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM fee_structures
		 WHERE company = ? AND status = ? AND effective_from <= ?
		   AND (effective_to IS NULL OR effective_to >= ?)
		 ORDER BY effective_from DESC, id`,
		company, domain.StructureSubmitted, key, key)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.FeeStructure](rows)
}

func (s *Store) UpdateFeeStructure(ctx context.Context, fs *domain.FeeStructure) error {
	data, err := marshal(fs)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE fee_structures SET status = ?, effective_from = ?, effective_to = ?, data = ?
		 WHERE id = ?`,
		fs.Status, dateKey(fs.EffectiveFrom), dateKeyPtr(fs.EffectiveTo), data, fs.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "fee_structure", fs.ID)
}

// ============================================================
// AccountStore
// ============================================================

func (s *Store) CreatePropertyAccount(ctx context.Context, a *domain.PropertyAccount) error {
	data, err := marshal(a)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO property_accounts (id, company, property_code, status, data)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Company, a.PropertyCode, a.Status, data)
	if isUniqueViolation(err) {
		return &domain.ErrDuplicate{Key: "property account " + a.ID}
	}
	return err
}

func (s *Store) GetPropertyAccount(ctx context.Context, id string) (*domain.PropertyAccount, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM property_accounts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "property_account", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.PropertyAccount](data)
}

func (s *Store) GetAccountByProperty(ctx context.Context, company, propertyCode string) (*domain.PropertyAccount, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM property_accounts WHERE company = ? AND property_code = ?`,
		company, propertyCode).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "property_account", ID: propertyCode}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.PropertyAccount](data)
}

func (s *Store) ListAccounts(ctx context.Context, company string) ([]domain.PropertyAccount, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM property_accounts WHERE company = ? ORDER BY id`, company)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.PropertyAccount](rows)
}

func (s *Store) ListActiveAccounts(ctx context.Context, company string) ([]domain.PropertyAccount, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM property_accounts WHERE company = ? AND status = ? ORDER BY id`,
		company, domain.AccountActive)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.PropertyAccount](rows)
}

func (s *Store) UpdatePropertyAccount(ctx context.Context, a *domain.PropertyAccount) error {
	data, err := marshal(a)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE property_accounts SET status = ?, data = ? WHERE id = ?`,
		a.Status, data, a.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "property_account", a.ID)
}

func (s *Store) CreateResidentAccount(ctx context.Context, r *domain.ResidentAccount) error {
	data, err := marshal(r)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO resident_accounts (id, account_id, data) VALUES (?, ?, ?)`,
		r.ID, r.PropertyAccountID, data)
	if isUniqueViolation(err) {
		return &domain.ErrDuplicate{Key: "resident account " + r.ID}
	}
	return err
}

func (s *Store) GetResidentAccount(ctx context.Context, id string) (*domain.ResidentAccount, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM resident_accounts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "resident_account", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.ResidentAccount](data)
}

func (s *Store) ListResidentsByAccount(ctx context.Context, accountID string) ([]domain.ResidentAccount, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM resident_accounts WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.ResidentAccount](rows)
}

func (s *Store) UpdateResidentAccount(ctx context.Context, r *domain.ResidentAccount) error {
	data, err := marshal(r)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE resident_accounts SET data = ? WHERE id = ?`, data, r.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "resident_account", r.ID)
}

// requireRow converts a zero-row update or delete into ErrNotFound.
func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}
