package service

import (
	"context"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var summaryTracer = otel.Tracer("service/summary")

// expiringHorizonDays is how far ahead the summary looks for credits about
// to expire.
const expiringHorizonDays = 30

// CompanySummary aggregates the financial position of a company. The four
// independent reads fan out concurrently.
func (s *LedgerService) CompanySummary(ctx context.Context, company string) (*domain.CompanySummary, error) {
	ctx, span := summaryTracer.Start(ctx, "LedgerService.CompanySummary")
	defer span.End()
	span.SetAttributes(attribute.String("company", company))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("company_summary", time.Since(start)) }()

	summary := &domain.CompanySummary{Company: company}
	today := s.clock.Today()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		accounts, err := s.store.ListAccounts(gctx, company)
		if err != nil {
			return err
		}
		outstanding, overdue, credit := decimal.Zero, decimal.Zero, decimal.Zero
		active := 0
		for i := range accounts {
			a := &accounts[i]
			if a.Status == domain.AccountActive {
				active++
			}
			outstanding = outstanding.Add(a.PendingAmount)
			overdue = overdue.Add(a.OverdueAmount)
			credit = credit.Add(a.CreditBalance)
		}
		summary.ActiveAccounts = active
		summary.TotalOutstanding = outstanding
		summary.TotalOverdue = overdue
		summary.TotalCredit = credit
		return nil
	})

	g.Go(func() error {
		cycles, err := s.store.ListCycles(gctx, company)
		if err != nil {
			return err
		}
		open := 0
		invoiced, paid := decimal.Zero, decimal.Zero
		for i := range cycles {
			c := &cycles[i]
			switch c.Status {
			case domain.CycleActive, domain.CycleInvoiced:
				open++
			}
			invoiced = invoiced.Add(c.TotalInvoiced)
			paid = paid.Add(c.PaidAmount)
		}
		summary.OpenCycles = open
		if invoiced.IsPositive() {
			summary.CollectionRate = domain.RoundMoney(paid.Div(invoiced).Mul(domain.Hundred))
		}
		return nil
	})

	g.Go(func() error {
		fines, err := s.store.ListOpenFinesByCompany(gctx, company)
		if err != nil {
			return err
		}
		outstanding := decimal.Zero
		for i := range fines {
			outstanding = outstanding.Add(fines[i].Outstanding())
		}
		summary.OpenFines = len(fines)
		summary.FinesOutstanding = outstanding
		return nil
	})

	g.Go(func() error {
		horizon := today.AddDate(0, 0, expiringHorizonDays)
		credits, err := s.store.ListExpiringCredits(gctx, company, horizon)
		if err != nil {
			return err
		}
		amount := decimal.Zero
		for i := range credits {
			amount = amount.Add(credits[i].Remaining)
		}
		summary.CreditsExpiring = len(credits)
		summary.ExpiringAmount = amount
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}
