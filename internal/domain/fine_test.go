package domain_test

import (
	"testing"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"github.com/shopspring/decimal"
)

func newFine() *domain.Fine {
	return &domain.Fine{
		ID:             "fine-1",
		AccountID:      "acc-1",
		Company:        "torre-norte",
		Category:       domain.FineNoise,
		OriginalAmount: decimal.NewFromInt(100),
		IssueDate:      date(2026, time.January, 1),
		DueDate:        date(2026, time.January, 11),
		TotalAmount:    decimal.NewFromInt(100),
		Status:         domain.FinePending,
	}
}

func TestFineEvaluate_Ladder(t *testing.T) {
	f := newFine()
	policy := domain.DefaultEscalationPolicy()

	cases := []struct {
		name     string
		asOf     time.Time
		level    int
		action   string
		total    string
		interest string
	}{
		{"before first notice", date(2026, time.January, 5), 0, "", "100.40", "0.40"},
		{"first notice", date(2026, time.January, 9), 1, "first_notice", "150.80", "0.80"},
		{"second notice", date(2026, time.January, 16), 2, "second_notice", "226.50", "1.50"},
		{"final notice", date(2026, time.January, 23), 3, "final_notice", "302.20", "2.20"},
		{"legal action", date(2026, time.February, 1), 4, "legal_action", "903.10", "3.10"},
		{"collection agency", date(2026, time.February, 20), 5, "collection_agency", "1067.50", "5.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := f.Evaluate(tc.asOf, policy)
			if a.Level != tc.level {
				t.Errorf("expected level %d, got %d", tc.level, a.Level)
			}
			if a.Action != tc.action {
				t.Errorf("expected action %q, got %q", tc.action, a.Action)
			}
			if a.Interest.StringFixed(2) != tc.interest {
				t.Errorf("expected interest %s, got %s", tc.interest, a.Interest.StringFixed(2))
			}
			if a.Total.StringFixed(2) != tc.total {
				t.Errorf("expected total %s, got %s", tc.total, a.Total.StringFixed(2))
			}
		})
	}
}

func TestFineEvaluate_LevelNeverDrops(t *testing.T) {
	f := newFine()
	f.Level = 3
	policy := domain.DefaultEscalationPolicy()

	// Two days after issue the ladder alone would say level 0.
	a := f.Evaluate(date(2026, time.January, 3), policy)
	if a.Level != 3 {
		t.Errorf("expected level to hold at 3, got %d", a.Level)
	}
	if a.Action != "final_notice" {
		t.Errorf("expected action final_notice, got %q", a.Action)
	}
	if !a.Multiplier.Equal(domain.MustMoney("1.5")) {
		t.Errorf("expected multiplier 1.5, got %s", a.Multiplier)
	}
}

func TestFineEvaluate_BeforeIssueDate(t *testing.T) {
	f := newFine()
	a := f.Evaluate(date(2025, time.December, 20), domain.DefaultEscalationPolicy())
	if a.Level != 0 {
		t.Errorf("expected level 0 before issue date, got %d", a.Level)
	}
	if !a.Interest.IsZero() {
		t.Errorf("expected zero interest before issue date, got %s", a.Interest)
	}
}

func TestFineOutstanding(t *testing.T) {
	f := newFine()
	f.TotalAmount = domain.MustMoney("302.20")
	f.PaidAmount = decimal.NewFromInt(100)

	if f.Outstanding().StringFixed(2) != "202.20" {
		t.Errorf("expected outstanding 202.20, got %s", f.Outstanding().StringFixed(2))
	}

	f.PaidAmount = decimal.NewFromInt(400)
	if !f.Outstanding().IsZero() {
		t.Errorf("expected outstanding clamped to zero, got %s", f.Outstanding())
	}
}

func TestFineOpen(t *testing.T) {
	f := newFine()
	open := []domain.FineStatus{domain.FinePending, domain.FineOverdue, domain.FinePartiallyPaid}
	for _, s := range open {
		f.Status = s
		if !f.Open() {
			t.Errorf("expected %s to be open", s)
		}
	}
	closed := []domain.FineStatus{domain.FinePaid, domain.FineDisputed, domain.FineWaived, domain.FineWrittenOff}
	for _, s := range closed {
		f.Status = s
		if f.Open() {
			t.Errorf("expected %s to be closed", s)
		}
	}
}

func TestFineValidate(t *testing.T) {
	f := newFine()
	if err := f.Validate(); err != nil {
		t.Fatalf("expected valid fine, got %v", err)
	}

	f.DueDate = f.IssueDate.AddDate(0, 0, -1)
	if err := f.Validate(); err == nil {
		t.Error("expected error for due date before issue date")
	}

	f = newFine()
	f.OriginalAmount = decimal.Zero
	if err := f.Validate(); err == nil {
		t.Error("expected error for non-positive original amount")
	}
}
