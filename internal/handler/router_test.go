package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/domain"
	"github.com/arvetta/condo-ledger-go/internal/handler"
	"github.com/arvetta/condo-ledger-go/internal/infra/memstore"
	"github.com/arvetta/condo-ledger-go/internal/infra/observability"
	"github.com/arvetta/condo-ledger-go/internal/port"
	"github.com/arvetta/condo-ledger-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type nopReminders struct{}

func (nopReminders) SendReminder(context.Context, string, string, string) error { return nil }

func newTestRouter(t *testing.T, cfg handler.Config) (http.Handler, *service.LedgerService) {
	t.Helper()
	svc := service.NewLedgerService(
		memstore.New(),
		port.FixedClock{Instant: time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC)},
		nopReminders{},
		observability.NewMetrics(),
		zap.NewNop(),
		service.Policy{CreditExpiryMonths: 12, DefaultGraceDays: 5, Escalation: domain.DefaultEscalationPolicy(), MaxConcurrency: 4},
		5*time.Minute,
	)
	return handler.NewRouter(svc, observability.NewMetrics(), zap.NewNop(), cfg), svc
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t, handler.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router, _ := newTestRouter(t, handler.Config{})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router, _ := newTestRouter(t, handler.Config{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCreateAndGetProperty(t *testing.T) {
	router, _ := newTestRouter(t, handler.Config{})

	body := map[string]any{
		"code":            "A-101",
		"total_area":      "120",
		"built_area":      "100",
		"usage_type":      "residential",
		"ownership_share": "60",
	}
	buf, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/companies/torre-norte/properties", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/companies/torre-norte/properties/A-101", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var p domain.Property
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if p.Code != "A-101" || p.Company != "torre-norte" {
		t.Errorf("unexpected property %q / %q", p.Code, p.Company)
	}
}

func TestCreateProperty_ValidationError(t *testing.T) {
	router, _ := newTestRouter(t, handler.Config{})

	// Shares sum to 90, not 100.
	body := []byte(`{
		"code": "A-500",
		"total_area": "100",
		"built_area": "80",
		"usage_type": "residential",
		"ownership_share": "5",
		"owners": [
			{"owner_id": "o-1", "owner_kind": "individual", "share_percent": "60"},
			{"owner_id": "o-2", "owner_kind": "individual", "share_percent": "30"}
		]
	}`)

	req := httptest.NewRequest(http.MethodPost, "/v1/companies/torre-norte/properties", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetProperty_NotFound(t *testing.T) {
	router, _ := newTestRouter(t, handler.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/companies/torre-norte/properties/GHOST", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing key: %v", err)
	}
	router, _ := newTestRouter(t, handler.Config{APIKeyHash: string(hash)})

	req := httptest.NewRequest(http.MethodGet, "/v1/companies/torre-norte/properties", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/companies/torre-norte/properties", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/companies/torre-norte/properties", nil)
	req.Header.Set("X-API-Key", "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with valid key, got %d", rec.Code)
	}

	// Operational endpoints stay open.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected open healthz, got %d", rec.Code)
	}
}

func signToken(t *testing.T, secret, role, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestAdminRoutes(t *testing.T) {
	const secret = "test-secret"
	router, svc := newTestRouter(t, handler.Config{JWTSecret: secret})

	// Seed an account and a fine through the service.
	ctx := context.Background()
	if _, err := svc.RegisterProperty(ctx, &domain.Property{
		Code:           "A-101",
		Company:        "torre-norte",
		TotalArea:      decimal.NewFromInt(120),
		BuiltArea:      decimal.NewFromInt(100),
		UsageType:      domain.UsageResidential,
		OwnershipShare: decimal.NewFromInt(60),
	}); err != nil {
		t.Fatalf("registering property: %v", err)
	}
	a, err := svc.OpenAccount(ctx, &domain.PropertyAccount{
		Company:      "torre-norte",
		PropertyCode: "A-101",
		Frequency:    domain.FreqMonthly,
		BillingDay:   5,
	})
	if err != nil {
		t.Fatalf("opening account: %v", err)
	}
	f, err := svc.IssueFine(ctx, &domain.Fine{
		AccountID:      a.ID,
		Category:       domain.FineNoise,
		OriginalAmount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("issuing fine: %v", err)
	}

	waivePath := "/v1/fines/" + f.ID + "/waive"

	// No token.
	req := httptest.NewRequest(http.MethodPost, waivePath, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	// Non-admin role.
	req = httptest.NewRequest(http.MethodPost, waivePath, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "resident", "owner@a-101"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", rec.Code)
	}

	// Wrong secret.
	req = httptest.NewRequest(http.MethodPost, waivePath, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "admin", "admin@arvetta"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong secret, got %d", rec.Code)
	}

	// Valid admin token waives the fine; the token subject is the approver.
	req = httptest.NewRequest(http.MethodPost, waivePath, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "admin", "admin@arvetta"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
	var waived domain.Fine
	if err := json.Unmarshal(rec.Body.Bytes(), &waived); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if waived.Status != domain.FineWaived {
		t.Errorf("expected waived, got %s", waived.Status)
	}
	if waived.WaivedBy != "admin@arvetta" {
		t.Errorf("expected approver from token subject, got %q", waived.WaivedBy)
	}
}

func TestWriteOffFineAdminRoute(t *testing.T) {
	const secret = "test-secret"
	router, svc := newTestRouter(t, handler.Config{JWTSecret: secret})

	ctx := context.Background()
	if _, err := svc.RegisterProperty(ctx, &domain.Property{
		Code:           "A-101",
		Company:        "torre-norte",
		TotalArea:      decimal.NewFromInt(120),
		BuiltArea:      decimal.NewFromInt(100),
		UsageType:      domain.UsageResidential,
		OwnershipShare: decimal.NewFromInt(60),
	}); err != nil {
		t.Fatalf("registering property: %v", err)
	}
	a, err := svc.OpenAccount(ctx, &domain.PropertyAccount{
		Company:      "torre-norte",
		PropertyCode: "A-101",
		Frequency:    domain.FreqMonthly,
		BillingDay:   5,
	})
	if err != nil {
		t.Fatalf("opening account: %v", err)
	}
	f, err := svc.IssueFine(ctx, &domain.Fine{
		AccountID:      a.ID,
		Category:       domain.FineNoise,
		OriginalAmount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("issuing fine: %v", err)
	}

	path := "/v1/fines/" + f.ID + "/writeoff"

	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "resident", "owner@a-101"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "admin", "admin@arvetta"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
	var written domain.Fine
	if err := json.Unmarshal(rec.Body.Bytes(), &written); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if written.Status != domain.FineWrittenOff {
		t.Errorf("expected written off, got %s", written.Status)
	}
	if written.WrittenOffBy != "admin@arvetta" {
		t.Errorf("expected approver from token subject, got %q", written.WrittenOffBy)
	}
}

func TestCloseResidentRoute(t *testing.T) {
	router, svc := newTestRouter(t, handler.Config{})

	ctx := context.Background()
	if _, err := svc.RegisterProperty(ctx, &domain.Property{
		Code:           "A-101",
		Company:        "torre-norte",
		TotalArea:      decimal.NewFromInt(120),
		BuiltArea:      decimal.NewFromInt(100),
		UsageType:      domain.UsageResidential,
		OwnershipShare: decimal.NewFromInt(60),
	}); err != nil {
		t.Fatalf("registering property: %v", err)
	}
	a, err := svc.OpenAccount(ctx, &domain.PropertyAccount{
		Company:      "torre-norte",
		PropertyCode: "A-101",
		Frequency:    domain.FreqMonthly,
		BillingDay:   5,
	})
	if err != nil {
		t.Fatalf("opening account: %v", err)
	}
	r, err := svc.AddResident(ctx, &domain.ResidentAccount{
		PropertyAccountID: a.ID,
		Name:              "Carla",
		Kind:              domain.ResidentTenant,
	})
	if err != nil {
		t.Fatalf("adding resident: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/residents/"+r.ID+"/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var closed domain.ResidentAccount
	if err := json.Unmarshal(rec.Body.Bytes(), &closed); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if closed.Status != domain.AccountClosed {
		t.Errorf("expected closed, got %s", closed.Status)
	}

	// Closing again is a conflict.
	req = httptest.NewRequest(http.MethodPost, "/v1/residents/"+r.ID+"/close", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on double close, got %d", rec.Code)
	}
}

func TestGrantCreditAdminRoute(t *testing.T) {
	const secret = "test-secret"
	router, svc := newTestRouter(t, handler.Config{JWTSecret: secret})

	ctx := context.Background()
	if _, err := svc.RegisterProperty(ctx, &domain.Property{
		Code:           "A-101",
		Company:        "torre-norte",
		TotalArea:      decimal.NewFromInt(120),
		BuiltArea:      decimal.NewFromInt(100),
		UsageType:      domain.UsageResidential,
		OwnershipShare: decimal.NewFromInt(60),
	}); err != nil {
		t.Fatalf("registering property: %v", err)
	}
	a, err := svc.OpenAccount(ctx, &domain.PropertyAccount{
		Company:      "torre-norte",
		PropertyCode: "A-101",
		Frequency:    domain.FreqMonthly,
		BillingDay:   5,
	})
	if err != nil {
		t.Fatalf("opening account: %v", err)
	}

	body := []byte(`{"amount": "250", "auto_apply": true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/"+a.ID+"/credits", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "admin", "admin@arvetta"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var cb domain.CreditBalance
	if err := json.Unmarshal(rec.Body.Bytes(), &cb); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if cb.Remaining.StringFixed(2) != "250.00" {
		t.Errorf("expected remaining 250.00, got %s", cb.Remaining.StringFixed(2))
	}
}
