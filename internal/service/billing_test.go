package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
)

func TestGenerateInvoices(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a1 := seedAccount(t, svc, "torre-norte", "A-101", 60)
	a2 := seedAccount(t, svc, "torre-norte", "A-102", 40)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	got, err := svc.GenerateInvoices(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != domain.CycleInvoiced {
		t.Errorf("expected invoiced cycle, got %s", got.Status)
	}
	if got.GenerationStatus != domain.GenerationDone {
		t.Errorf("expected generation done, got %s", got.GenerationStatus)
	}
	if got.GeneratedCount != 2 {
		t.Errorf("expected 2 invoices generated, got %d", got.GeneratedCount)
	}
	// 1000 * 60% + 10% reserve = 660, same shape for the 40% share.
	if got.TotalInvoiced.StringFixed(2) != "1100.00" {
		t.Errorf("expected total invoiced 1100.00, got %s", got.TotalInvoiced.StringFixed(2))
	}

	inv1, err := svc.ListOpenInvoices(ctx, a1.ID)
	if err != nil {
		t.Fatalf("listing invoices: %v", err)
	}
	if len(inv1) != 1 {
		t.Fatalf("expected 1 open invoice, got %d", len(inv1))
	}
	if inv1[0].Amount.StringFixed(2) != "660.00" {
		t.Errorf("expected invoice amount 660.00, got %s", inv1[0].Amount.StringFixed(2))
	}

	acc, err := svc.GetAccount(ctx, a2.ID)
	if err != nil {
		t.Fatalf("getting account: %v", err)
	}
	if acc.CurrentBalance.StringFixed(2) != "-440.00" {
		t.Errorf("expected balance -440.00, got %s", acc.CurrentBalance.StringFixed(2))
	}
}

func TestGenerateInvoices_RequiresActiveCycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	seedAccount(t, svc, "torre-norte", "A-101", 60)

	c, err := svc.CreateCycle(ctx, &domain.BillingCycle{
		Name:           "draft cycle",
		Company:        "torre-norte",
		Frequency:      domain.FreqMonthly,
		StartDate:      date(2026, time.March, 1),
		EndDate:        date(2026, time.March, 31),
		DueDate:        date(2026, time.April, 10),
		FeeStructureID: fs.ID,
	})
	if err != nil {
		t.Fatalf("creating cycle: %v", err)
	}

	_, err = svc.GenerateInvoices(ctx, c.ID)
	var st *domain.ErrStateTransition
	if !errors.As(err, &st) {
		t.Fatalf("expected state transition error, got %v", err)
	}
}

func TestGenerateInvoices_PartialFailureAndRerun(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	seedAccount(t, svc, "torre-norte", "A-101", 60)
	// No ownership share: per-share calculation fails for this account.
	seedAccount(t, svc, "torre-norte", "A-102", 0)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	got, err := svc.GenerateInvoices(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.GenerationStatus != domain.GenerationError {
		t.Errorf("expected generation error, got %s", got.GenerationStatus)
	}
	if got.Status != domain.CycleActive {
		t.Errorf("expected cycle to stay active, got %s", got.Status)
	}
	if got.GeneratedCount != 1 || got.FailedCount != 1 {
		t.Errorf("expected 1 generated / 1 failed, got %d / %d", got.GeneratedCount, got.FailedCount)
	}
	if len(got.Failures) != 1 {
		t.Fatalf("expected 1 failure record, got %d", len(got.Failures))
	}

	// Fix the property and rerun. The already-invoiced account is skipped,
	// not double-billed.
	p, err := svc.GetProperty(ctx, "torre-norte", "A-102")
	if err != nil {
		t.Fatalf("getting property: %v", err)
	}
	p.OwnershipShare = domain.MustMoney("40")
	if _, err := svc.UpdateProperty(ctx, p); err != nil {
		t.Fatalf("updating property: %v", err)
	}

	got, err = svc.GenerateInvoices(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("rerun: expected no error, got %v", err)
	}
	if got.GenerationStatus != domain.GenerationDone {
		t.Errorf("rerun: expected generation done, got %s", got.GenerationStatus)
	}
	if got.Status != domain.CycleInvoiced {
		t.Errorf("rerun: expected invoiced, got %s", got.Status)
	}

	invoices, err := svc.ListCycleInvoices(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("listing cycle invoices: %v", err)
	}
	if len(invoices) != 2 {
		t.Errorf("expected exactly 2 invoices after rerun, got %d", len(invoices))
	}
}

func TestCreateCycle_RejectsOverlap(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	seedActiveCycle(t, svc, "torre-norte", fs.ID)

	_, err := svc.CreateCycle(ctx, &domain.BillingCycle{
		Name:           "overlapping",
		Company:        "torre-norte",
		Frequency:      domain.FreqMonthly,
		StartDate:      date(2026, time.March, 15),
		EndDate:        date(2026, time.April, 14),
		DueDate:        date(2026, time.April, 24),
		FeeStructureID: fs.ID,
	})
	var ev *domain.ErrValidation
	if !errors.As(err, &ev) {
		t.Fatalf("expected validation error for overlapping window, got %v", err)
	}
}

func TestScheduleCycle_RejectsOverlap(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	draft, err := svc.CreateCycle(ctx, &domain.BillingCycle{
		Name:           "2026-03",
		Company:        "torre-norte",
		Frequency:      domain.FreqMonthly,
		StartDate:      date(2026, time.March, 1),
		EndDate:        date(2026, time.March, 31),
		DueDate:        date(2026, time.April, 10),
		FeeStructureID: fs.ID,
	})
	if err != nil {
		t.Fatalf("creating cycle: %v", err)
	}

	// A competing cycle landing after the draft was accepted: schedule
	// must re-check the window.
	if err := store.CreateCycle(ctx, &domain.BillingCycle{
		ID:             "cycle-competitor",
		Name:           "2026-03b",
		Company:        "torre-norte",
		Frequency:      domain.FreqMonthly,
		StartDate:      date(2026, time.March, 15),
		EndDate:        date(2026, time.April, 14),
		DueDate:        date(2026, time.April, 24),
		FeeStructureID: fs.ID,
		Status:         domain.CycleScheduled,
	}); err != nil {
		t.Fatalf("seeding competing cycle: %v", err)
	}

	_, err = svc.ScheduleCycle(ctx, draft.ID)
	var ev *domain.ErrValidation
	if !errors.As(err, &ev) {
		t.Fatalf("expected validation error for overlapping window, got %v", err)
	}
}

func TestCancelCycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	// No ownership share: generation fails for this account, so the
	// cycle stays active with a partial invoice set.
	seedAccount(t, svc, "torre-norte", "A-102", 0)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	got, err := svc.GenerateInvoices(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("generating invoices: %v", err)
	}
	if got.Status != domain.CycleActive {
		t.Fatalf("expected cycle to stay active after partial generation, got %s", got.Status)
	}

	got, err = svc.CancelCycle(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("cancelling cycle: %v", err)
	}
	if got.Status != domain.CycleCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	acc, err := svc.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("getting account: %v", err)
	}
	if !acc.CurrentBalance.IsZero() {
		t.Errorf("expected balance restored to zero, got %s", acc.CurrentBalance)
	}
	if !acc.YTDInvoiced.IsZero() {
		t.Errorf("expected ytd invoiced restored to zero, got %s", acc.YTDInvoiced)
	}

	invoices, err := svc.ListCycleInvoices(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("listing cycle invoices: %v", err)
	}
	for _, inv := range invoices {
		if inv.Status != domain.InvoiceCancelled {
			t.Errorf("expected cancelled invoice, got %s", inv.Status)
		}
		if !inv.Outstanding.IsZero() {
			t.Errorf("expected zero outstanding on cancelled invoice, got %s", inv.Outstanding)
		}
	}
}

func TestCancelCycle_RefusedOnceInvoiced(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	seedAccount(t, svc, "torre-norte", "A-101", 60)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, cycle.ID); err != nil {
		t.Fatalf("generating invoices: %v", err)
	}

	_, err := svc.CancelCycle(ctx, cycle.ID)
	var st *domain.ErrStateTransition
	if !errors.As(err, &st) {
		t.Fatalf("expected state transition error, got %v", err)
	}
}

func TestCancelCycle_RefusedAfterPayment(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, cycle.ID); err != nil {
		t.Fatalf("generating invoices: %v", err)
	}
	payAccount(t, svc, a.ID, "200")

	_, err := svc.CancelCycle(ctx, cycle.ID)
	var hp *domain.ErrHasPayments
	if !errors.As(err, &hp) {
		t.Fatalf("expected has-payments error, got %v", err)
	}
}

func TestSendReminders(t *testing.T) {
	svc, _, reminders := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	seedAccount(t, svc, "torre-norte", "A-101", 60)
	seedAccount(t, svc, "torre-norte", "A-102", 40)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, cycle.ID); err != nil {
		t.Fatalf("generating invoices: %v", err)
	}

	got, err := svc.SendReminders(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("sending reminders: %v", err)
	}
	if reminders.count() != 2 {
		t.Errorf("expected 2 reminders, got %d", reminders.count())
	}
	if got.LastReminderSent == nil {
		t.Fatal("expected last reminder timestamp to be set")
	}

	// Same day again: no-op.
	if _, err := svc.SendReminders(ctx, cycle.ID); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if reminders.count() != 2 {
		t.Errorf("expected reminder count unchanged, got %d", reminders.count())
	}
}

func TestSendReminders_DeliveryFailureIsNotFatal(t *testing.T) {
	svc, _, reminders := newTestService(t)
	ctx := context.Background()
	reminders.err = errors.New("webhook down")

	fs := seedStructure(t, svc, "torre-norte")
	seedAccount(t, svc, "torre-norte", "A-101", 60)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, cycle.ID); err != nil {
		t.Fatalf("generating invoices: %v", err)
	}
	if _, err := svc.SendReminders(ctx, cycle.ID); err != nil {
		t.Fatalf("expected delivery failures to be swallowed, got %v", err)
	}
}

func TestCloseCycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	fs := seedStructure(t, svc, "torre-norte")
	a := seedAccount(t, svc, "torre-norte", "A-101", 60)
	cycle := seedActiveCycle(t, svc, "torre-norte", fs.ID)

	if _, err := svc.GenerateInvoices(ctx, cycle.ID); err != nil {
		t.Fatalf("generating invoices: %v", err)
	}
	payAccount(t, svc, a.ID, "660")

	got, err := svc.CloseCycle(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("closing cycle: %v", err)
	}
	if got.Status != domain.CycleCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.CollectionRate.StringFixed(2) != "100.00" {
		t.Errorf("expected collection rate 100.00, got %s", got.CollectionRate.StringFixed(2))
	}
}
