package handler

import (
	"net/http"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/infra/observability"
	"github.com/arvetta/condo-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Config carries the handler-level auth settings.
type Config struct {
	JWTSecret  string
	APIKeyHash string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.LedgerService, metrics *observability.Metrics, logger *zap.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(APIKeyMiddleware(cfg.APIKeyHash, logger))

		// Property registry
		r.Post("/companies/{company}/properties", createPropertyHandler(svc, logger))
		r.Get("/companies/{company}/properties", listPropertiesHandler(svc, logger))
		r.Get("/companies/{company}/properties/{code}", getPropertyHandler(svc, logger))
		r.Put("/companies/{company}/properties/{code}", updatePropertyHandler(svc, logger))
		r.Delete("/companies/{company}/properties/{code}", deletePropertyHandler(svc, logger))
		r.Get("/companies/{company}/properties/{code}/fee-quote", quoteFeeHandler(svc, logger))

		// Fee structures
		r.Post("/companies/{company}/fee-structures", createFeeStructureHandler(svc, logger))
		r.Get("/companies/{company}/fee-structures", listFeeStructuresHandler(svc, logger))
		r.Get("/fee-structures/{structureId}", getFeeStructureHandler(svc, logger))
		r.Put("/fee-structures/{structureId}", updateFeeStructureHandler(svc, logger))
		r.Post("/fee-structures/{structureId}/submit", submitFeeStructureHandler(svc, logger))

		// Property accounts
		r.Post("/accounts", openAccountHandler(svc, logger))
		r.Get("/accounts/{accountId}", getAccountHandler(svc, logger))
		r.Get("/companies/{company}/accounts", listAccountsHandler(svc, logger))
		r.Post("/accounts/{accountId}/suspend", suspendAccountHandler(svc, logger))
		r.Post("/accounts/{accountId}/reactivate", reactivateAccountHandler(svc, logger))
		r.Post("/accounts/{accountId}/close", closeAccountHandler(svc, logger))
		r.Post("/accounts/{accountId}/recompute-aging", recomputeAgingHandler(svc, logger))
		r.Get("/accounts/{accountId}/invoices", listOpenInvoicesHandler(svc, logger))

		// Resident accounts
		r.Post("/accounts/{accountId}/residents", addResidentHandler(svc, logger))
		r.Get("/accounts/{accountId}/residents", listResidentsHandler(svc, logger))
		r.Get("/residents/{residentId}", getResidentHandler(svc, logger))
		r.Post("/residents/{residentId}/charge", chargeResidentHandler(svc, logger))
		r.Post("/residents/{residentId}/credit", creditResidentHandler(svc, logger))
		r.Post("/residents/{residentId}/close", closeResidentHandler(svc, logger))

		// Billing cycles
		r.Post("/companies/{company}/cycles", createCycleHandler(svc, logger))
		r.Get("/companies/{company}/cycles", listCyclesHandler(svc, logger))
		r.Get("/cycles/{cycleId}", getCycleHandler(svc, logger))
		r.Get("/cycles/{cycleId}/invoices", listCycleInvoicesHandler(svc, logger))
		r.Get("/invoices/{invoiceId}", getInvoiceHandler(svc, logger))
		r.Post("/cycles/{cycleId}/schedule", cycleTransitionHandler(logger, "POST /cycles/{cycleId}/schedule", svc.ScheduleCycle))
		r.Post("/cycles/{cycleId}/activate", cycleTransitionHandler(logger, "POST /cycles/{cycleId}/activate", svc.ActivateCycle))
		r.Post("/cycles/{cycleId}/generate", cycleTransitionHandler(logger, "POST /cycles/{cycleId}/generate", svc.GenerateInvoices))
		r.Post("/cycles/{cycleId}/metrics", cycleTransitionHandler(logger, "POST /cycles/{cycleId}/metrics", svc.UpdateCollectionMetrics))
		r.Post("/cycles/{cycleId}/reminders", cycleTransitionHandler(logger, "POST /cycles/{cycleId}/reminders", svc.SendReminders))
		r.Post("/cycles/{cycleId}/close", cycleTransitionHandler(logger, "POST /cycles/{cycleId}/close", svc.CloseCycle))

		// Payments
		r.Post("/payments", submitPaymentHandler(svc, logger))
		r.Get("/payments/{paymentId}", getPaymentHandler(svc, logger))
		r.Get("/accounts/{accountId}/payments", listPaymentsHandler(svc, logger))
		r.Post("/payments/{paymentId}/process", processPaymentHandler(svc, logger))
		r.Post("/payments/{paymentId}/reject", rejectPaymentHandler(svc, logger))

		// Credit balances
		r.Get("/credits/{creditId}", getCreditHandler(svc, logger))
		r.Get("/accounts/{accountId}/credits", listCreditsHandler(svc, logger))
		r.Post("/credits/sweep", sweepCreditsHandler(svc, logger))
		r.Post("/credits/{creditId}/transfer", transferCreditHandler(svc, logger))

		// Fines
		r.Post("/fines", issueFineHandler(svc, logger))
		r.Get("/fines/{fineId}", getFineHandler(svc, logger))
		r.Get("/accounts/{accountId}/fines", listFinesHandler(svc, logger))
		r.Get("/fines/{fineId}/assessment", assessFineHandler(svc, logger))
		r.Post("/companies/{company}/fines/escalate", escalateFinesHandler(svc, logger))
		r.Post("/fines/{fineId}/dispute", disputeFineHandler(svc, logger))

		// Read-only aggregates
		r.Get("/companies/{company}/summary", companySummaryHandler(svc, logger))
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics, logger))

		// Admin-only operations
		r.Group(func(r chi.Router) {
			r.Use(AdminJWTMiddleware(cfg.JWTSecret, logger))
			r.Post("/cycles/{cycleId}/cancel", cycleTransitionHandler(logger, "POST /cycles/{cycleId}/cancel", svc.CancelCycle))
			r.Post("/payments/{paymentId}/reverse", reversePaymentHandler(svc, logger))
			r.Post("/accounts/{accountId}/credits", grantCreditHandler(svc, logger))
			r.Post("/credits/{creditId}/reinstate", reinstateCreditHandler(svc, logger))
			r.Post("/fines/{fineId}/waive", waiveFineHandler(svc, logger))
			r.Post("/fines/{fineId}/writeoff", writeOffFineHandler(svc, logger))
			r.Post("/fines/{fineId}/resolve", resolveDisputeHandler(svc, logger))
		})
	})

	return r
}

func companySummaryHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /companies/{company}/summary")
		defer span.End()

		summary, err := svc.CompanySummary(ctx, chi.URLParam(r, "company"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /metrics/ledger")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}

func healthzHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_, err := svc.ListProperties(r.Context(), "health-check")
		latency := time.Since(start).Milliseconds()

		status := "healthy"
		code := http.StatusOK
		if err != nil {
			logger.Warn("health check store ping failed", zap.Error(err))
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":           status,
			"store_latency_ms": latency,
			"checked_at":       time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
