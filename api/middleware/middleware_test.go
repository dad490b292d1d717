package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/serataapp/serata-backend/internal/identity"
	pkgauth "github.com/serataapp/serata-backend/pkg/auth"
	"github.com/serataapp/serata-backend/pkg/config"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
)

type stubSessionVerifier struct {
	ok bool
}

func (s stubSessionVerifier) HasSession(context.Context, string) (bool, error) {
	return s.ok, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}
}

func mintToken(t *testing.T, role enums.AccountRole) (string, uuid.UUID) {
	t.Helper()
	accountID := uuid.New()
	payload := pkgauth.AccessTokenPayload{AccountID: accountID, Role: role, JTI: uuid.NewString()}
	if role == enums.AccountRolePromoter {
		profileID := uuid.New()
		payload.PromoterProfileID = &profileID
	}
	token, err := pkgauth.MintAccessToken(testJWTConfig(), time.Now().UTC(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, accountID
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWTConfig(), stubSessionVerifier{ok: true}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsContext(t *testing.T) {
	token, accountID := mintToken(t, enums.AccountRoleManager)
	var gotAccount, gotRole string
	handler := Auth(testJWTConfig(), stubSessionVerifier{ok: true}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAccount = AccountIDFromContext(r.Context())
			gotRole = RoleFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotAccount != accountID.String() || gotRole != "manager" {
		t.Fatalf("unexpected context values %q %q", gotAccount, gotRole)
	}
}

func TestAuthRejectsDeadSession(t *testing.T) {
	token, _ := mintToken(t, enums.AccountRoleManager)
	handler := Auth(testJWTConfig(), stubSessionVerifier{ok: false}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

type stubTokenResolver struct {
	profile *models.PromoterProfile
}

func (s stubTokenResolver) ResolveToken(context.Context, string) (*models.PromoterProfile, error) {
	return s.profile, nil
}

func TestPromoterAuth(t *testing.T) {
	profile := &models.PromoterProfile{ID: uuid.New(), TenantID: uuid.New()}
	var gotPromoter, gotTenant, gotRole string
	handler := PromoterAuth(stubTokenResolver{profile: profile}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPromoter = PromoterIDFromContext(r.Context())
			gotTenant = TenantIDFromContext(r.Context())
			gotRole = RoleFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-opaque-token")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotPromoter != profile.ID.String() || gotTenant != profile.TenantID.String() || gotRole != "promoter" {
		t.Fatalf("unexpected context: %q %q %q", gotPromoter, gotTenant, gotRole)
	}

	// Revoked tokens resolve to nil and must 401.
	rejecting := PromoterAuth(stubTokenResolver{}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer revoked")
	resp = httptest.NewRecorder()
	rejecting.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, "owner", "manager")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), "manager"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), "promoter"))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

type fakeIdempotencyStore struct {
	data map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{data: make(map[string]string)}
}

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"guest admission", http.MethodPost, "/api/v1/guest-lists/{listId}/entries", criticalIdempotencyTTL, true},
		{"booking proposal", http.MethodPost, "/api/v1/bookings", criticalIdempotencyTTL, true},
		{"booking approve", http.MethodPost, "/api/v1/bookings/{bookingId}/approve", criticalIdempotencyTTL, true},
		{"promoter create", http.MethodPost, "/api/v1/promoters", defaultIdempotencyTTL, true},
		{"promoter app admission", http.MethodPost, "/api/v1/promoter/guest-lists/{listId}/entries", criticalIdempotencyTTL, true},
		{"checkin scan unguarded", http.MethodPost, "/api/v1/checkin/scan", 0, false},
		{"login unguarded", http.MethodPost, "/api/v1/auth/login", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeIdempotencyStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	first := requestWithPattern(http.MethodPost, "/api/v1/bookings", "/api/v1/bookings", strings.NewReader(`{"table_type_id":"x"}`))
	first.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, first)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	replay := requestWithPattern(http.MethodPost, "/api/v1/bookings", "/api/v1/bookings", strings.NewReader(`{"table_type_id":"x"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay 201 got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body, got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newFakeIdempotencyStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := requestWithPattern(http.MethodPost, "/api/v1/bookings", "/api/v1/bookings", strings.NewReader(`{"a":1}`))
	first.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), first)

	replay := requestWithPattern(http.MethodPost, "/api/v1/bookings", "/api/v1/bookings", strings.NewReader(`{"a":2}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestAuthRateLimitBlocksAfterLimit(t *testing.T) {
	store := &fakeCounterStore{counts: map[string]int64{}}
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 0)
	mw := AuthRateLimit(policy, store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

type fakeCounterStore struct {
	counts map[string]int64
}

func (f *fakeCounterStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

type stubBackfiller struct {
	profileID *uuid.UUID
	called    bool
}

func (s *stubBackfiller) Resolve(_ context.Context, creds identity.RequestCredentials) identity.ResolvedIdentity {
	s.called = true
	resolved := identity.ResolvedIdentity{AccountID: creds.AccountID}
	if creds.PromoterProfileID != nil {
		// Pretend the referenced profile no longer exists.
		return resolved
	}
	resolved.PromoterProfileID = s.profileID
	return resolved
}

func TestResolveIdentityBackfillsProfile(t *testing.T) {
	accountID := uuid.New()
	profileID := uuid.New()
	var gotProfile string
	handler := ResolveIdentity(&stubBackfiller{profileID: &profileID})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotProfile = PromoterIDFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithAccountID(req.Context(), accountID.String()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if gotProfile != profileID.String() {
		t.Fatalf("expected back-filled profile %s got %q", profileID, gotProfile)
	}
}

func TestResolveIdentitySkipsAnonymousRequests(t *testing.T) {
	stub := &stubBackfiller{}
	handler := ResolveIdentity(stub)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if stub.called {
		t.Fatal("resolver must not run for anonymous requests")
	}
}

func TestResolveIdentityDropsStaleProfile(t *testing.T) {
	staleID := uuid.New()
	var gotProfile string
	handler := ResolveIdentity(&stubBackfiller{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotProfile = PromoterIDFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPromoterID(req.Context(), staleID.String()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if gotProfile != "" {
		t.Fatalf("expected stale profile dropped, got %q", gotProfile)
	}
}
