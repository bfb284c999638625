package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

// ============================================================
// BillingStore: cycles
// ============================================================

func (s *Store) CreateCycle(ctx context.Context, c *domain.BillingCycle) error {
	data, err := marshal(c)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO billing_cycles (id, company, status, start_date, end_date, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Company, c.Status, dateKey(c.StartDate), dateKey(c.EndDate), data)
	if isUniqueViolation(err) {
		return &domain.ErrDuplicate{Key: "billing cycle " + c.ID}
	}
	return err
}

func (s *Store) GetCycle(ctx context.Context, id string) (*domain.BillingCycle, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM billing_cycles WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "billing_cycle", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.BillingCycle](data)
}

func (s *Store) ListCycles(ctx context.Context, company string) ([]domain.BillingCycle, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM billing_cycles WHERE company = ? ORDER BY start_date, id`, company)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.BillingCycle](rows)
}

func (s *Store) ListOverlappingCycles(ctx context.Context, company string, start, end time.Time, excludeID string) ([]domain.BillingCycle, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM billing_cycles
		 WHERE company = ? AND status != ? AND id != ?
		   AND start_date <= ? AND end_date >= ?
		 ORDER BY start_date, id`,
		company, domain.CycleCancelled, excludeID, dateKey(end), dateKey(start))
	if err != nil {
		return nil, err
	}
	return scanAll[domain.BillingCycle](rows)
}

func (s *Store) UpdateCycle(ctx context.Context, c *domain.BillingCycle) error {
	data, err := marshal(c)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE billing_cycles SET status = ?, start_date = ?, end_date = ?, data = ?
		 WHERE id = ?`,
		c.Status, dateKey(c.StartDate), dateKey(c.EndDate), data, c.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "billing_cycle", c.ID)
}

// ============================================================
// BillingStore: invoices
// ============================================================

func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	data, err := marshal(inv)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO invoices (id, cycle_id, account_id, status, due_date, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CycleID, inv.AccountID, inv.Status, dateKey(inv.DueDate), data)
	if isUniqueViolation(err) {
		return &domain.ErrDuplicate{Key: "invoice for cycle " + inv.CycleID + " account " + inv.AccountID}
	}
	return err
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM invoices WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.Invoice](data)
}

func (s *Store) GetInvoiceByCycleAndAccount(ctx context.Context, cycleID, accountID string) (*domain.Invoice, error) {
	var data string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT data FROM invoices WHERE cycle_id = ? AND account_id = ?`,
		cycleID, accountID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: cycleID + "/" + accountID}
	}
	if err != nil {
		return nil, err
	}
	return unmarshal[domain.Invoice](data)
}

func (s *Store) ListInvoicesByCycle(ctx context.Context, cycleID string) ([]domain.Invoice, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM invoices WHERE cycle_id = ? ORDER BY account_id`, cycleID)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.Invoice](rows)
}

func (s *Store) ListOpenInvoicesByAccount(ctx context.Context, accountID string) ([]domain.Invoice, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM invoices WHERE account_id = ? AND status = ?
		 ORDER BY due_date, id`,
		accountID, domain.InvoiceOpen)
	if err != nil {
		return nil, err
	}
	return scanAll[domain.Invoice](rows)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	data, err := marshal(inv)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE invoices SET status = ?, data = ? WHERE id = ?`,
		inv.Status, data, inv.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "invoice", inv.ID)
}
