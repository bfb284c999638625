package handler

import (
	"net/http"

	"github.com/arvetta/condo-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Credit Balance Handlers
// ============================================================

type grantCreditRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	AutoApply bool            `json:"auto_apply"`
}

func grantCreditHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /accounts/{accountId}/credits")
		defer span.End()

		var req grantCreditRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		cb, err := svc.GrantCredit(ctx, chi.URLParam(r, "accountId"), req.Amount, req.AutoApply)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, cb)
	}
}

func getCreditHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /credits/{creditId}")
		defer span.End()

		cb, err := svc.GetCredit(ctx, chi.URLParam(r, "creditId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cb)
	}
}

func listCreditsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/{accountId}/credits")
		defer span.End()

		credits, err := svc.ListCredits(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, credits)
	}
}

func sweepCreditsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /credits/sweep")
		defer span.End()

		count, err := svc.SweepExpiredCredits(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"expired": count})
	}
}

type transferCreditRequest struct {
	TargetAccountID string          `json:"target_account_id"`
	Amount          decimal.Decimal `json:"amount"`
}

func transferCreditHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /credits/{creditId}/transfer")
		defer span.End()

		var req transferCreditRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		cb, err := svc.TransferCredit(ctx, chi.URLParam(r, "creditId"), req.TargetAccountID, req.Amount)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cb)
	}
}

func reinstateCreditHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /credits/{creditId}/reinstate")
		defer span.End()

		cb, err := svc.ReinstateCredit(ctx, chi.URLParam(r, "creditId"), AdminFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cb)
	}
}
