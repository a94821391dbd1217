package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gradebook/server/internal/auth"
	"gradebook/server/internal/config"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tc := range cases {
		if got := bearerToken(tc.header); got != tc.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	if !validEmail("user@example.com") {
		t.Error("expected a plain address to validate")
	}
	for _, email := range []string{"", "not-an-email", "@example.com"} {
		if validEmail(email) {
			t.Errorf("expected %q to be rejected", email)
		}
	}
}

func TestStatusForCode(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{"missing_student_id", http.StatusUnprocessableEntity},
		{"missing_group_id", http.StatusUnprocessableEntity},
		{"invalid_year", http.StatusBadRequest},
		{"name_too_short", http.StatusBadRequest},
		{"group_not_found", http.StatusNotFound},
		{"user_not_found", http.StatusNotFound},
		{"student_without_group", http.StatusNotFound},
		{"server_error", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForCode(tc.code); got != tc.want {
			t.Errorf("statusForCode(%q) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","bogus":1}`))
	var out loginRequest
	if err := decodeJSON(req, &out); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "unit-test-secret",
		JWTIssuer:      "gradebook-server",
		AccessTokenTTL: time.Minute,
	}
}

func issueTestToken(t *testing.T, cfg config.Config, userID, role string) string {
	t.Helper()
	token, err := auth.NewAccessToken(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, auth.Claims{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.UserID != "u1" {
			t.Errorf("unexpected claims: %+v", claims)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler := server.authMiddleware(next)

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/account", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/account", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, cfg, "u1", "student"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected the request through, got %d", rec.Code)
	}
}

func TestRequireHeadmaster(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := server.authMiddleware(server.requireHeadmaster(next))

	for role, want := range map[string]int{
		"student":    http.StatusForbidden,
		"professor":  http.StatusForbidden,
		"headmaster": http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/group/create", nil)
		req.Header.Set("Authorization", "Bearer "+issueTestToken(t, cfg, "u1", role))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %s: expected %d, got %d", role, want, rec.Code)
		}
	}
}

func TestRequireProfessorOrHeadmaster(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := server.authMiddleware(server.requireProfessorOrHeadmaster(next))

	for role, want := range map[string]int{
		"student":    http.StatusForbidden,
		"unknown":    http.StatusForbidden,
		"professor":  http.StatusNoContent,
		"headmaster": http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/grades/update", nil)
		req.Header.Set("Authorization", "Bearer "+issueTestToken(t, cfg, "u1", role))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %s: expected %d, got %d", role, want, rec.Code)
		}
	}
}

func TestSubjectCacheKey(t *testing.T) {
	if subjectCacheKey(0) != "subjects:0" || subjectCacheKey(3) != "subjects:3" {
		t.Fatal("unexpected cache key format")
	}
}
