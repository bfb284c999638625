package handler

import (
	"net/http"

	"github.com/arvetta/condo-ledger-go/internal/domain"
	"github.com/arvetta/condo-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Property Registry Handlers
// ============================================================

func createPropertyHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /companies/{company}/properties")
		defer span.End()

		var p domain.Property
		if err := decodeJSON(r, &p); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		p.Company = chi.URLParam(r, "company")
		created, err := svc.RegisterProperty(ctx, &p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func getPropertyHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /companies/{company}/properties/{code}")
		defer span.End()

		p, err := svc.GetProperty(ctx, chi.URLParam(r, "company"), chi.URLParam(r, "code"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func listPropertiesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /companies/{company}/properties")
		defer span.End()

		properties, err := svc.ListProperties(ctx, chi.URLParam(r, "company"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, properties)
	}
}

func updatePropertyHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /companies/{company}/properties/{code}")
		defer span.End()

		var p domain.Property
		if err := decodeJSON(r, &p); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		p.Company = chi.URLParam(r, "company")
		p.Code = chi.URLParam(r, "code")
		updated, err := svc.UpdateProperty(ctx, &p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deletePropertyHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /companies/{company}/properties/{code}")
		defer span.End()

		if err := svc.RemoveProperty(ctx, chi.URLParam(r, "company"), chi.URLParam(r, "code")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
