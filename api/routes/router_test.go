package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/serataapp/serata-backend/pkg/auth"
	"github.com/serataapp/serata-backend/pkg/config"
	"github.com/serataapp/serata-backend/pkg/enums"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "router-test-secret", Issuer: "serata-test", ExpirationMinutes: 10},
	}
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(Deps{Config: testConfig()})
}

func mintTestToken(t *testing.T, role enums.AccountRole) string {
	t.Helper()
	payload := pkgauth.AccessTokenPayload{
		AccountID: uuid.New(),
		Role:      role,
		JTI:       uuid.NewString(),
	}
	if role == enums.AccountRolePromoter {
		profileID := uuid.New()
		payload.PromoterProfileID = &profileID
	}
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now().UTC(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := testRouter(t)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Serata-Env") != "test" {
		t.Fatalf("missing env header")
	}
}

func TestBackOfficeRejectsMissingJWT(t *testing.T) {
	router := testRouter(t)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/guest-lists", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestManagerRoutesRejectStaffRole(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/promoters", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, enums.AccountRoleStaff))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestStaffRoutesRejectPromoterRole(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cancellations", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, enums.AccountRolePromoter))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestPromoterGroupRejectsMissingToken(t *testing.T) {
	router := testRouter(t)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/promoter/bookings", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
