package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads the request body into dst, refusing unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

// parseDate reads a query parameter as a day-granular date, defaulting to
// fallback when absent.
func parseDate(r *http.Request, param string, fallback time.Time) (time.Time, error) {
	v := r.URL.Query().Get(param)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseInLocation("2006-01-02", v, time.UTC)
	if err != nil {
		return time.Time{}, &domain.ErrValidation{Field: param, Message: "expected YYYY-MM-DD"}
	}
	return d, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var transition *domain.ErrStateTransition
	var concurrency *domain.ErrConcurrency
	var configErr *domain.ErrConfig
	var forbidden *domain.ErrForbidden
	var noShare *domain.ErrNoOwnershipShare
	var suspended *domain.ErrAccountSuspended
	var hasPayments *domain.ErrHasPayments
	var insufficient *domain.ErrInsufficientCredit
	var duplicate *domain.ErrDuplicate
	var unauthorized *domain.ErrUnauthorized

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &transition):
		logger.Debug("illegal state transition", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &concurrency):
		logger.Warn("concurrent update", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &configErr):
		logger.Warn("configuration error", zap.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &noShare):
		logger.Debug("missing ownership share", zap.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &suspended):
		logger.Warn("account suspended", zap.String("account_id", suspended.AccountID))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &hasPayments):
		logger.Debug("cycle has payments", zap.String("cycle_id", hasPayments.CycleID))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &insufficient):
		logger.Debug("insufficient credit", zap.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &duplicate):
		logger.Debug("duplicate resource", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
