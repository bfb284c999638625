package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
	"github.com/arvetta/condo-ledger-go/internal/infra/memstore"
	"github.com/arvetta/condo-ledger-go/internal/infra/observability"
	"github.com/arvetta/condo-ledger-go/internal/port"
	"github.com/arvetta/condo-ledger-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// testDay is the instant every test clock is pinned to.
var testDay = time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// reminderRecorder captures reminder deliveries, optionally failing them.
type reminderRecorder struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *reminderRecorder) SendReminder(_ context.Context, _, invoiceID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, invoiceID)
	return nil
}

func (r *reminderRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func testPolicy() service.Policy {
	return service.Policy{
		CreditExpiryMonths: 12,
		DefaultGraceDays:   5,
		Escalation:         domain.DefaultEscalationPolicy(),
		MaxConcurrency:     4,
	}
}

func newTestService(t *testing.T) (*service.LedgerService, *memstore.Store, *reminderRecorder) {
	t.Helper()
	store := memstore.New()
	reminders := &reminderRecorder{}
	svc := service.NewLedgerService(
		store,
		port.FixedClock{Instant: testDay},
		reminders,
		observability.NewMetrics(),
		zap.NewNop(),
		testPolicy(),
		5*time.Minute,
	)
	return svc, store, reminders
}

// seedAccount registers a property with the given ownership share, a
// submitted by-share structure (base 1000, reserve fund 10%) and an open
// account. Returns the account.
func seedAccount(t *testing.T, svc *service.LedgerService, company, code string, share int) *domain.PropertyAccount {
	t.Helper()
	ctx := context.Background()

	_, err := svc.RegisterProperty(ctx, &domain.Property{
		Code:           code,
		Company:        company,
		TotalArea:      decimal.NewFromInt(120),
		BuiltArea:      decimal.NewFromInt(100),
		UsageType:      domain.UsageResidential,
		OwnershipShare: decimal.NewFromInt(int64(share)),
	})
	if err != nil {
		t.Fatalf("registering property %s: %v", code, err)
	}

	a, err := svc.OpenAccount(ctx, &domain.PropertyAccount{
		Company:      company,
		PropertyCode: code,
		Frequency:    domain.FreqMonthly,
		BillingDay:   5,
	})
	if err != nil {
		t.Fatalf("opening account for %s: %v", code, err)
	}
	return a
}

func seedStructure(t *testing.T, svc *service.LedgerService, company string) *domain.FeeStructure {
	t.Helper()
	ctx := context.Background()

	fs, err := svc.CreateFeeStructure(ctx, &domain.FeeStructure{
		Name:               "Standard 2026",
		Company:            company,
		BaseAmount:         decimal.NewFromInt(1000),
		Method:             domain.MethodByShare,
		EffectiveFrom:      date(2026, time.January, 1),
		ReserveFundPercent: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("creating fee structure: %v", err)
	}
	fs, err = svc.SubmitFeeStructure(ctx, fs.ID)
	if err != nil {
		t.Fatalf("submitting fee structure: %v", err)
	}
	return fs
}

// seedActiveCycle creates, schedules and activates a March cycle bound to
// the given structure.
func seedActiveCycle(t *testing.T, svc *service.LedgerService, company, structureID string) *domain.BillingCycle {
	t.Helper()
	return seedActiveCycleWindow(t, svc, company, structureID,
		date(2026, time.March, 1), date(2026, time.March, 31), date(2026, time.April, 10))
}

func seedActiveCycleWindow(t *testing.T, svc *service.LedgerService, company, structureID string, start, end, due time.Time) *domain.BillingCycle {
	t.Helper()
	ctx := context.Background()

	c, err := svc.CreateCycle(ctx, &domain.BillingCycle{
		Name:           "cycle " + start.Format("2006-01"),
		Company:        company,
		Frequency:      domain.FreqMonthly,
		StartDate:      start,
		EndDate:        end,
		DueDate:        due,
		FeeStructureID: structureID,
	})
	if err != nil {
		t.Fatalf("creating cycle: %v", err)
	}
	if _, err := svc.ScheduleCycle(ctx, c.ID); err != nil {
		t.Fatalf("scheduling cycle: %v", err)
	}
	if _, err := svc.ActivateCycle(ctx, c.ID); err != nil {
		t.Fatalf("activating cycle: %v", err)
	}
	return c
}
