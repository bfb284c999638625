package handler

import (
	"context"
	"net/http"

	"github.com/arvetta/condo-ledger-go/internal/domain"
	"github.com/arvetta/condo-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Billing Cycle Handlers
// ============================================================

func createCycleHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /companies/{company}/cycles")
		defer span.End()

		var c domain.BillingCycle
		if err := decodeJSON(r, &c); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		c.Company = chi.URLParam(r, "company")
		created, err := svc.CreateCycle(ctx, &c)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func getCycleHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /cycles/{cycleId}")
		defer span.End()

		c, err := svc.GetCycle(ctx, chi.URLParam(r, "cycleId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func listCyclesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /companies/{company}/cycles")
		defer span.End()

		cycles, err := svc.ListCycles(ctx, chi.URLParam(r, "company"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cycles)
	}
}

// cycleTransitionHandler wraps the one-argument cycle operations: schedule,
// activate, generate, metrics refresh, reminders, close, cancel.
func cycleTransitionHandler(logger *zap.Logger, spanName string, fn func(ctx context.Context, cycleID string) (*domain.BillingCycle, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), spanName)
		defer span.End()

		c, err := fn(ctx, chi.URLParam(r, "cycleId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func listCycleInvoicesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /cycles/{cycleId}/invoices")
		defer span.End()

		invoices, err := svc.ListCycleInvoices(ctx, chi.URLParam(r, "cycleId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, invoices)
	}
}

func getInvoiceHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /invoices/{invoiceId}")
		defer span.End()

		inv, err := svc.GetInvoice(ctx, chi.URLParam(r, "invoiceId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}
