package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
	"github.com/arvetta/condo-ledger-go/internal/service"
)

// payAccount submits and processes a transfer payment for the account.
func payAccount(t *testing.T, svc *service.LedgerService, accountID, amount string) *domain.PaymentCollection {
	t.Helper()
	ctx := context.Background()

	p, err := svc.SubmitPayment(ctx, &domain.PaymentCollection{
		AccountID: accountID,
		Gross:     domain.MustMoney(amount),
		Method:    domain.MethodTransfer,
	})
	if err != nil {
		t.Fatalf("submitting payment: %v", err)
	}
	p, err = svc.ProcessPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("processing payment: %v", err)
	}
	return p
}

func TestProcessPayment_AllocatesOldestFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, cycle.ID); err != nil {
		t.Fatalf("generating invoices: %v", err)
	}

	p := payAccount(t, svc, a.ID, "200")
	if p.Status != domain.PaymentProcessed {
		t.Errorf("expected processed, got %s", p.Status)
	}
	if len(p.Allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(p.Allocations))
	}
	if p.Allocations[0].Amount.StringFixed(2) != "200.00" {
		t.Errorf("expected allocation 200.00, got %s", p.Allocations[0].Amount.StringFixed(2))
	}
	if !p.Surplus.IsZero() {
		t.Errorf("expected no surplus, got %s", p.Surplus)
	}

	open, err := svc.ListOpenInvoices(ctx, a.ID)
	if err != nil {
		t.Fatalf("listing invoices: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open invoice, got %d", len(open))
	}
	if open[0].Outstanding.StringFixed(2) != "460.00" {
		t.Errorf("expected outstanding 460.00, got %s", open[0].Outstanding.StringFixed(2))
	}
}

func TestProcessPayment_SurplusBecomesCredit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, cycle.ID); err != nil {
		t.Fatalf("generating invoices: %v", err)
	}

	p := payAccount(t, svc, a.ID, "800")
	if p.Surplus.StringFixed(2) != "140.00" {
		t.Errorf("expected surplus 140.00, got %s", p.Surplus.StringFixed(2))
	}
	if p.CreditBalanceID == "" {
		t.Fatal("expected a credit balance to be created")
	}

	cb, err := svc.GetCredit(ctx, p.CreditBalanceID)
	if err != nil {
		t.Fatalf("getting credit: %v", err)
	}
	if cb.Remaining.StringFixed(2) != "140.00" {
		t.Errorf("expected credit remaining 140.00, got %s", cb.Remaining.StringFixed(2))
	}
	if cb.ExpiryDate == nil {
		t.Fatal("expected expiry date on surplus credit")
	}
	wantExpiry := p.PostingDate.AddDate(0, 12, 0)
	if !cb.ExpiryDate.Equal(wantExpiry) {
		t.Errorf("expected expiry %s, got %s", wantExpiry.Format("2006-01-02"), cb.ExpiryDate.Format("2006-01-02"))
	}
	if !cb.AutoApply {
		t.Error("expected surplus credit to auto-apply")
	}

	acc, err := svc.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("getting account: %v", err)
	}
	if acc.CurrentBalance.StringFixed(2) != "140.00" {
		t.Errorf("expected balance 140.00, got %s", acc.CurrentBalance.StringFixed(2))
	}
	if acc.CreditBalance.StringFixed(2) != "140.00" {
		t.Errorf("expected credit balance 140.00, got %s", acc.CreditBalance.StringFixed(2))
	}
}

func TestProcessPayment_CreditAutoAppliedNextCycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	march := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, march.ID); err != nil {
		t.Fatalf("generating march invoices: %v", err)
	}
	p := payAccount(t, svc, a.ID, "800")

	april := seedActiveCycleWindow(t, svc, "torre-norte", fs.ID,
		date(2026, time.April, 1), date(2026, time.April, 30), date(2026, time.May, 10))
	if _, err := svc.GenerateInvoices(ctx, april.ID); err != nil {
		t.Fatalf("generating april invoices: %v", err)
	}

	open, err := svc.ListOpenInvoices(ctx, a.ID)
	if err != nil {
		t.Fatalf("listing invoices: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open invoice, got %d", len(open))
	}
	if open[0].Outstanding.StringFixed(2) != "520.00" {
		t.Errorf("expected outstanding 520.00 after credit draw-down, got %s", open[0].Outstanding.StringFixed(2))
	}

	cb, err := svc.GetCredit(ctx, p.CreditBalanceID)
	if err != nil {
		t.Fatalf("getting credit: %v", err)
	}
	if cb.Status != domain.CreditFullyApplied {
		t.Errorf("expected fully applied credit, got %s", cb.Status)
	}

	acc, err := svc.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("getting account: %v", err)
	}
	if !acc.CreditBalance.IsZero() {
		t.Errorf("expected zero credit balance, got %s", acc.CreditBalance)
	}
}

func TestProcessPayment_CoversFinesAfterInvoices(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, cycle.ID); err != nil {
		t.Fatalf("generating invoices: %v", err)
	}
	fine, err := svc.IssueFine(ctx, &domain.Fine{
		AccountID:      a.ID,
		Category:       domain.FineParking,
		OriginalAmount: domain.MustMoney("100"),
	})
	if err != nil {
		t.Fatalf("issuing fine: %v", err)
	}

	p := payAccount(t, svc, a.ID, "700")
	if len(p.Allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(p.Allocations))
	}
	if p.Allocations[0].Target != domain.TargetInvoice {
		t.Errorf("expected invoice allocated first, got %s", p.Allocations[0].Target)
	}
	if p.Allocations[1].Target != domain.TargetFine {
		t.Errorf("expected fine allocated second, got %s", p.Allocations[1].Target)
	}
	if p.Allocations[1].Amount.StringFixed(2) != "40.00" {
		t.Errorf("expected 40.00 against the fine, got %s", p.Allocations[1].Amount.StringFixed(2))
	}

	f, err := svc.GetFine(ctx, fine.ID)
	if err != nil {
		t.Fatalf("getting fine: %v", err)
	}
	if f.Status != domain.FinePartiallyPaid {
		t.Errorf("expected partially paid fine, got %s", f.Status)
	}
	if f.Outstanding().StringFixed(2) != "60.00" {
		t.Errorf("expected fine outstanding 60.00, got %s", f.Outstanding().StringFixed(2))
	}
}

func TestProcessPayment_OnlyPending(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)

	p := payAccount(t, svc, a.ID, "100")
	_, err := svc.ProcessPayment(ctx, p.ID)
	var st *domain.ErrStateTransition
	if !errors.As(err, &st) {
		t.Fatalf("expected state transition error on double process, got %v", err)
	}
}

func TestRejectPayment(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)

	p, err := svc.SubmitPayment(ctx, &domain.PaymentCollection{
		AccountID: a.ID,
		Gross:     domain.MustMoney("100"),
		Method:    domain.MethodCash,
	})
	if err != nil {
		t.Fatalf("submitting payment: %v", err)
	}
	p, err = svc.RejectPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("rejecting payment: %v", err)
	}
	if p.Status != domain.PaymentRejected {
		t.Errorf("expected rejected, got %s", p.Status)
	}

	acc, err := svc.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("getting account: %v", err)
	}
	if !acc.CurrentBalance.IsZero() {
		t.Errorf("expected untouched balance, got %s", acc.CurrentBalance)
	}
}

func TestReversePayment(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, cycle.ID); err != nil {
		t.Fatalf("generating invoices: %v", err)
	}
	p := payAccount(t, svc, a.ID, "800")

	reversed, err := svc.ReversePayment(ctx, p.ID, "admin@arvetta")
	if err != nil {
		t.Fatalf("reversing payment: %v", err)
	}
	if reversed.Status != domain.PaymentReversed {
		t.Errorf("expected reversed, got %s", reversed.Status)
	}
	if reversed.ReversedAt == nil {
		t.Error("expected reversal timestamp")
	}
	// Original and mirror rows net to zero.
	if len(reversed.Allocations) != 2 {
		t.Errorf("expected 2 allocation rows, got %d", len(reversed.Allocations))
	}
	if !reversed.AllocatedTotal().IsZero() {
		t.Errorf("expected allocations to net to zero, got %s", reversed.AllocatedTotal())
	}

	open, err := svc.ListOpenInvoices(ctx, a.ID)
	if err != nil {
		t.Fatalf("listing invoices: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected reopened invoice, got %d open", len(open))
	}
	if open[0].Outstanding.StringFixed(2) != "660.00" {
		t.Errorf("expected outstanding 660.00, got %s", open[0].Outstanding.StringFixed(2))
	}

	cb, err := svc.GetCredit(ctx, p.CreditBalanceID)
	if err != nil {
		t.Fatalf("getting credit: %v", err)
	}
	if cb.Status != domain.CreditCancelled {
		t.Errorf("expected cancelled credit, got %s", cb.Status)
	}

	acc, err := svc.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("getting account: %v", err)
	}
	if acc.CurrentBalance.StringFixed(2) != "-660.00" {
		t.Errorf("expected balance -660.00, got %s", acc.CurrentBalance.StringFixed(2))
	}
	if !acc.CreditBalance.IsZero() {
		t.Errorf("expected zero credit balance, got %s", acc.CreditBalance)
	}
}

func TestReversePayment_FineRestoredToPending(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	// Issued today: still level 0, not yet due.
	f := issueFine(t, svc, a.ID, date(2026, time.March, 20))

	p := payAccount(t, svc, a.ID, "100")

	paid, err := svc.GetFine(ctx, f.ID)
	if err != nil {
		t.Fatalf("getting fine: %v", err)
	}
	if paid.Status != domain.FinePaid {
		t.Fatalf("expected paid fine, got %s", paid.Status)
	}

	if _, err := svc.ReversePayment(ctx, p.ID, "admin@arvetta"); err != nil {
		t.Fatalf("reversing payment: %v", err)
	}

	got, err := svc.GetFine(ctx, f.ID)
	if err != nil {
		t.Fatalf("getting fine: %v", err)
	}
	if got.Status != domain.FinePending {
		t.Errorf("expected never-escalated fine back to pending, got %s", got.Status)
	}
	if !got.PaidAmount.IsZero() {
		t.Errorf("expected zero paid amount, got %s", got.PaidAmount.StringFixed(2))
	}
}

func TestReversePayment_RequiresApprover(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	p := payAccount(t, svc, a.ID, "100")

	_, err := svc.ReversePayment(ctx, p.ID, "")
	var fb *domain.ErrForbidden
	if !errors.As(err, &fb) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestReversePayment_RefusedWhenCreditConsumed(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	march := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, march.ID); err != nil {
		t.Fatalf("generating march invoices: %v", err)
	}
	p := payAccount(t, svc, a.ID, "800")

	// April generation consumes the 140 surplus credit.
	april := seedActiveCycleWindow(t, svc, "torre-norte", fs.ID,
		date(2026, time.April, 1), date(2026, time.April, 30), date(2026, time.May, 10))
	if _, err := svc.GenerateInvoices(ctx, april.ID); err != nil {
		t.Fatalf("generating april invoices: %v", err)
	}

	_, err := svc.ReversePayment(ctx, p.ID, "admin@arvetta")
	var st *domain.ErrStateTransition
	if !errors.As(err, &st) {
		t.Fatalf("expected state transition error, got %v", err)
	}
}
