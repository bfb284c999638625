package handler

import (
	"net/http"

	"github.com/arvetta/condo-ledger-go/internal/domain"
	"github.com/arvetta/condo-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Fine Handlers
// ============================================================

func issueFineHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /fines")
		defer span.End()

		var f domain.Fine
		if err := decodeJSON(r, &f); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		created, err := svc.IssueFine(ctx, &f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func getFineHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /fines/{fineId}")
		defer span.End()

		f, err := svc.GetFine(ctx, chi.URLParam(r, "fineId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func listFinesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/{accountId}/fines")
		defer span.End()

		fines, err := svc.ListFines(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, fines)
	}
}

func assessFineHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /fines/{fineId}/assessment")
		defer span.End()

		assessment, err := svc.AssessFine(ctx, chi.URLParam(r, "fineId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, assessment)
	}
}

func escalateFinesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /companies/{company}/fines/escalate")
		defer span.End()

		count, err := svc.EscalateFines(ctx, chi.URLParam(r, "company"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"escalated": count})
	}
}

func waiveFineHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /fines/{fineId}/waive")
		defer span.End()

		f, err := svc.WaiveFine(ctx, chi.URLParam(r, "fineId"), AdminFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

type disputeFineRequest struct {
	DisputedBy string `json:"disputed_by"`
}

func disputeFineHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /fines/{fineId}/dispute")
		defer span.End()

		var req disputeFineRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		f, err := svc.DisputeFine(ctx, chi.URLParam(r, "fineId"), req.DisputedBy)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func resolveDisputeHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /fines/{fineId}/resolve")
		defer span.End()

		f, err := svc.ResolveDispute(ctx, chi.URLParam(r, "fineId"), AdminFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func writeOffFineHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /fines/{fineId}/writeoff")
		defer span.End()

		f, err := svc.WriteOffFine(ctx, chi.URLParam(r, "fineId"), AdminFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}
