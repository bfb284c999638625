package handler

import (
	"net/http"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
	"github.com/arvetta/condo-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Fee Structure Handlers
// ============================================================

func createFeeStructureHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /companies/{company}/fee-structures")
		defer span.End()

		var fs domain.FeeStructure
		if err := decodeJSON(r, &fs); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		fs.Company = chi.URLParam(r, "company")
		created, err := svc.CreateFeeStructure(ctx, &fs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func getFeeStructureHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /fee-structures/{structureId}")
		defer span.End()

		fs, err := svc.GetFeeStructure(ctx, chi.URLParam(r, "structureId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, fs)
	}
}

func listFeeStructuresHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /companies/{company}/fee-structures")
		defer span.End()

		structures, err := svc.ListFeeStructures(ctx, chi.URLParam(r, "company"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, structures)
	}
}

func updateFeeStructureHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /fee-structures/{structureId}")
		defer span.End()

		var fs domain.FeeStructure
		if err := decodeJSON(r, &fs); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		fs.ID = chi.URLParam(r, "structureId")
		updated, err := svc.UpdateFeeStructure(ctx, &fs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func submitFeeStructureHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /fee-structures/{structureId}/submit")
		defer span.End()

		submitted, err := svc.SubmitFeeStructure(ctx, chi.URLParam(r, "structureId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, submitted)
	}
}

func quoteFeeHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /companies/{company}/properties/{code}/fee-quote")
		defer span.End()

		date, err := parseDate(r, "date", time.Now().UTC())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		quote, err := svc.QuoteFee(ctx, chi.URLParam(r, "company"), chi.URLParam(r, "code"), date)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	}
}
