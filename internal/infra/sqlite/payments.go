package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// ============================================================
// PaymentStore
// ============================================================

func (s *Store) CreatePayment(ctx context.Context, p *domain.PaymentCollection) error {
	data, err := marshal(p)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO payments (id, account_id, data) VALUES (?, ?, ?)`,
		p.ID, p.AccountID, data)
	if isUniqueViolation(err) {
		return &domain.ErrDuplicate{Key: "payment " + p.ID}
	}
	return err
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.PaymentCollection, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM payments WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "payment", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.PaymentCollection](data)
}

func (s *Store) ListPaymentsByAccount(ctx context.Context, accountID string) ([]domain.PaymentCollection, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM payments WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.PaymentCollection](rows)
}

func (s *Store) UpdatePayment(ctx context.Context, p *domain.PaymentCollection) error {
	data, err := marshal(p)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE payments SET data = ? WHERE id = ?`, data, p.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "payment", p.ID)
}

// ============================================================
// CreditStore
// ============================================================

func (s *Store) CreateCredit(ctx context.Context, cb *domain.CreditBalance) error {
	data, err := marshal(cb)
	if err != nil {
		return err
	}
	seq, err := s.nextSeq(ctx, "credit_balances")
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO credit_balances (id, account_id, company, status, expiry_date, created_seq, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cb.ID, cb.AccountID, cb.Company, cb.Status, dateKeyPtr(cb.ExpiryDate), seq, data)
	if isUniqueViolation(err) {
		return &domain.ErrDuplicate{Key: "credit balance " + cb.ID}
	}
	return err
}

func (s *Store) GetCredit(ctx context.Context, id string) (*domain.CreditBalance, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM credit_balances WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "credit_balance", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.CreditBalance](data)
}

func (s *Store) ListCreditsByAccount(ctx context.Context, accountID string) ([]domain.CreditBalance, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM credit_balances WHERE account_id = ? ORDER BY created_seq`, accountID)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.CreditBalance](rows)
}

func (s *Store) ListConsumableCredits(ctx context.Context, accountID string, today time.Time) ([]domain.CreditBalance, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM credit_balances
		 WHERE account_id = ? AND status IN (?, ?)
		 ORDER BY created_seq`,
		accountID, domain.CreditActive, domain.CreditPartiallyApplied)
	if err != nil {
		return nil, err
	}
	all, err := scanAll[domain.CreditBalance](rows)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, cb := range all {
		if cb.AutoApply && cb.Consumable(today) {
			out = append(out, cb)
		}
	}
	return out, nil
}

func (s *Store) ListExpiredCredits(ctx context.Context, asOf time.Time) ([]domain.CreditBalance, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM credit_balances
		 WHERE status IN (?, ?) AND expiry_date IS NOT NULL AND expiry_date < ?
		 ORDER BY created_seq`,
		domain.CreditActive, domain.CreditPartiallyApplied, dateKey(asOf))
	if err != nil {
		return nil, err
	}
	all, err := scanAll[domain.CreditBalance](rows)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, cb := range all {
		if cb.Remaining.IsPositive() {
			out = append(out, cb)
		}
	}
	return out, nil
}

func (s *Store) ListExpiringCredits(ctx context.Context, company string, horizon time.Time) ([]domain.CreditBalance, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM credit_balances
		 WHERE company = ? AND status IN (?, ?)
		   AND expiry_date IS NOT NULL AND expiry_date <= ?
		 ORDER BY created_seq`,
		company, domain.CreditActive, domain.CreditPartiallyApplied, dateKey(horizon))
	if err != nil {
		return nil, err
	}
	all, err := scanAll[domain.CreditBalance](rows)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, cb := range all {
		if cb.Remaining.IsPositive() {
			out = append(out, cb)
		}
	}
	return out, nil
}

func (s *Store) UpdateCredit(ctx context.Context, cb *domain.CreditBalance) error {
	data, err := marshal(cb)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE credit_balances SET status = ?, expiry_date = ?, data = ? WHERE id = ?`,
		cb.Status, dateKeyPtr(cb.ExpiryDate), data, cb.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "credit_balance", cb.ID)
}

// ============================================================
// FineStore
// ============================================================

func (s *Store) CreateFine(ctx context.Context, f *domain.Fine) error {
	data, err := marshal(f)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO fines (id, account_id, company, status, due_date, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.AccountID, f.Company, f.Status, dateKey(f.DueDate), data)
	if isUniqueViolation(err) {
		return &domain.ErrDuplicate{Key: "fine " + f.ID}
	}
	return err
}

func (s *Store) GetFine(ctx context.Context, id string) (*domain.Fine, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM fines WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "fine", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.Fine](data)
}

func (s *Store) ListFinesByAccount(ctx context.Context, accountID string) ([]domain.Fine, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM fines WHERE account_id = ? ORDER BY due_date, id`, accountID)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.Fine](rows)
}

func (s *Store) ListOpenFinesByAccount(ctx context.Context, accountID string) ([]domain.Fine, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM fines WHERE account_id = ? ORDER BY due_date, id`, accountID)
	if err != nil {
		return nil, err
	}
	all, err := scanAll[domain.Fine](rows)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, f := range all {
		if f.Open() && f.Outstanding().IsPositive() {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) ListOpenFinesByCompany(ctx context.Context, company string) ([]domain.Fine, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM fines WHERE company = ? ORDER BY due_date, id`, company)
	if err != nil {
		return nil, err
	}
	all, err := scanAll[domain.Fine](rows)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, f := range all {
		if f.Open() {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) UpdateFine(ctx context.Context, f *domain.Fine) error {
	data, err := marshal(f)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE fines SET status = ?, data = ? WHERE id = ?`,
		f.Status, data, f.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "fine", f.ID)
}
