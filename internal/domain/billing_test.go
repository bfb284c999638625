package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"github.com/shopspring/decimal"
)

func newCycle() *domain.BillingCycle {
	return &domain.BillingCycle{
		ID:             "cycle-1",
		Name:           "2026-01",
		Company:        "torre-norte",
		Frequency:      domain.FreqMonthly,
		StartDate:      date(2026, time.January, 1),
		EndDate:        date(2026, time.January, 31),
		DueDate:        date(2026, time.February, 10),
		FeeStructureID: "fs-1",
		Status:         domain.CycleDraft,
	}
}

func TestCycleValidate(t *testing.T) {
	c := newCycle()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid cycle, got %v", err)
	}

	c.EndDate = c.StartDate
	if err := c.Validate(); err == nil {
		t.Error("expected error when end date is not after start date")
	}

	c = newCycle()
	c.DueDate = c.EndDate.AddDate(0, 0, -1)
	if err := c.Validate(); err == nil {
		t.Error("expected error when due date precedes end date")
	}
}

func TestCycleTransitions(t *testing.T) {
	cases := []struct {
		from domain.CycleStatus
		to   domain.CycleStatus
		ok   bool
	}{
		{domain.CycleDraft, domain.CycleScheduled, true},
		{domain.CycleDraft, domain.CycleCancelled, true},
		{domain.CycleDraft, domain.CycleActive, false},
		{domain.CycleScheduled, domain.CycleActive, true},
		{domain.CycleScheduled, domain.CycleCancelled, true},
		{domain.CycleActive, domain.CycleInvoiced, true},
		{domain.CycleActive, domain.CycleCompleted, false},
		{domain.CycleInvoiced, domain.CycleCompleted, true},
		{domain.CycleInvoiced, domain.CycleCancelled, false},
		{domain.CycleCompleted, domain.CycleActive, false},
		{domain.CycleCancelled, domain.CycleDraft, false},
	}
	for _, tc := range cases {
		c := newCycle()
		c.Status = tc.from
		err := c.Transition(tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: expected success, got %v", tc.from, tc.to, err)
		}
		if !tc.ok {
			var st *domain.ErrStateTransition
			if !errors.As(err, &st) {
				t.Errorf("%s -> %s: expected state transition error, got %v", tc.from, tc.to, err)
			}
		}
	}
}

func TestCycleOverlaps(t *testing.T) {
	c := newCycle()

	if !c.Overlaps(date(2026, time.January, 15), date(2026, time.February, 15)) {
		t.Error("expected overlap with intersecting window")
	}
	if !c.Overlaps(date(2026, time.January, 31), date(2026, time.February, 28)) {
		t.Error("expected overlap on shared boundary day")
	}
	if c.Overlaps(date(2026, time.February, 1), date(2026, time.February, 28)) {
		t.Error("expected no overlap with adjacent window")
	}
}

func TestInvoiceSettleAndReopen(t *testing.T) {
	inv := &domain.Invoice{
		ID:          "inv-1",
		Amount:      domain.MustMoney("660.00"),
		Outstanding: domain.MustMoney("660.00"),
		Status:      domain.InvoiceOpen,
	}

	inv.Settle(decimal.NewFromInt(200))
	if inv.Status != domain.InvoiceOpen {
		t.Errorf("expected open after partial settle, got %s", inv.Status)
	}
	if !inv.Paid.Add(inv.Outstanding).Equal(inv.Amount) {
		t.Errorf("paid + outstanding must equal amount, got %s + %s", inv.Paid, inv.Outstanding)
	}

	inv.Settle(domain.MustMoney("460.00"))
	if inv.Status != domain.InvoicePaid {
		t.Errorf("expected paid when outstanding reaches zero, got %s", inv.Status)
	}

	inv.Reopen(decimal.NewFromInt(200))
	if inv.Status != domain.InvoiceOpen {
		t.Errorf("expected open after reopen, got %s", inv.Status)
	}
	if !inv.Paid.Add(inv.Outstanding).Equal(inv.Amount) {
		t.Errorf("paid + outstanding must equal amount, got %s + %s", inv.Paid, inv.Outstanding)
	}
}
