package domain_test

import (
	"testing"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"github.com/shopspring/decimal"
)

func newAccount() *domain.PropertyAccount {
	return &domain.PropertyAccount{
		ID:           "acc-1",
		Company:      "torre-norte",
		PropertyCode: "A-101",
		Frequency:    domain.FreqMonthly,
		BillingDay:   5,
		Status:       domain.AccountActive,
	}
}

func TestAccountRecordInvoice(t *testing.T) {
	a := newAccount()

	if err := a.RecordInvoice(domain.MustMoney("660.00")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a.CurrentBalance.StringFixed(2) != "-660.00" {
		t.Errorf("expected balance -660.00, got %s", a.CurrentBalance.StringFixed(2))
	}
	if a.YTDInvoiced.StringFixed(2) != "660.00" {
		t.Errorf("expected ytd invoiced 660.00, got %s", a.YTDInvoiced.StringFixed(2))
	}
}

func TestAccountRecordInvoice_Suspended(t *testing.T) {
	a := newAccount()
	a.Status = domain.AccountSuspended

	err := a.RecordInvoice(decimal.NewFromInt(100))
	if err == nil {
		t.Fatal("expected error invoicing a suspended account")
	}
	if _, ok := err.(*domain.ErrAccountSuspended); !ok {
		t.Errorf("expected ErrAccountSuspended, got %T", err)
	}
}

func TestAccountApplyPayment_AllowedWhileSuspended(t *testing.T) {
	a := newAccount()
	a.Status = domain.AccountSuspended
	a.CurrentBalance = decimal.NewFromInt(-500)

	a.ApplyPayment(decimal.NewFromInt(300))
	if a.CurrentBalance.StringFixed(2) != "-200.00" {
		t.Errorf("expected balance -200.00, got %s", a.CurrentBalance.StringFixed(2))
	}
	if a.YTDPaid.StringFixed(2) != "300.00" {
		t.Errorf("expected ytd paid 300.00, got %s", a.YTDPaid.StringFixed(2))
	}
}

func TestAccountValidate(t *testing.T) {
	a := newAccount()
	if err := a.Validate(); err != nil {
		t.Fatalf("expected valid account, got %v", err)
	}

	a.BillingDay = 29
	if err := a.Validate(); err == nil {
		t.Error("expected error for billing day outside [1, 28]")
	}

	a = newAccount()
	a.Frequency = "weekly"
	if err := a.Validate(); err == nil {
		t.Error("expected error for unknown billing frequency")
	}
}

func TestResidentAvailableCredit(t *testing.T) {
	r := &domain.ResidentAccount{
		ID:                "res-1",
		PropertyAccountID: "acc-1",
		Kind:              domain.ResidentOwner,
		CreditLimit:       decimal.NewFromInt(1000),
		CurrentBalance:    decimal.NewFromInt(-400),
	}

	if r.AvailableCredit().StringFixed(2) != "600.00" {
		t.Errorf("expected available 600.00, got %s", r.AvailableCredit().StringFixed(2))
	}
	if r.UtilizationPercent().StringFixed(2) != "40.00" {
		t.Errorf("expected utilization 40.00, got %s", r.UtilizationPercent().StringFixed(2))
	}

	r.CurrentBalance = decimal.NewFromInt(-1500)
	if !r.AvailableCredit().IsZero() {
		t.Errorf("expected available clamped to zero, got %s", r.AvailableCredit())
	}

	r.CurrentBalance = decimal.NewFromInt(250)
	if r.AvailableCredit().StringFixed(2) != "1000.00" {
		t.Errorf("expected full limit when in credit, got %s", r.AvailableCredit().StringFixed(2))
	}
}

func TestPropertyValidate_OwnerShares(t *testing.T) {
	p := &domain.Property{
		Code:           "A-101",
		Company:        "torre-norte",
		TotalArea:      decimal.NewFromInt(120),
		BuiltArea:      decimal.NewFromInt(100),
		UsageType:      domain.UsageResidential,
		OwnershipShare: decimal.NewFromInt(5),
		Owners: []domain.OwnershipEntry{
			{OwnerID: "o-1", OwnerKind: domain.OwnerIndividual, SharePercent: decimal.NewFromInt(60)},
			{OwnerID: "o-2", OwnerKind: domain.OwnerIndividual, SharePercent: decimal.NewFromInt(40)},
		},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid property, got %v", err)
	}

	p.Owners[1].SharePercent = decimal.NewFromInt(30)
	err := p.Validate()
	if err == nil {
		t.Fatal("expected error for shares summing to 90")
	}
	if _, ok := err.(*domain.ErrValidation); !ok {
		t.Errorf("expected ErrValidation, got %T", err)
	}

	p.Owners[1] = domain.OwnershipEntry{OwnerID: "o-1", SharePercent: decimal.NewFromInt(40)}
	if err := p.Validate(); err == nil {
		t.Error("expected error for duplicate owner")
	}

	p.Owners = nil
	p.BuiltArea = decimal.NewFromInt(130)
	if err := p.Validate(); err == nil {
		t.Error("expected error when built area exceeds total area")
	}
}
