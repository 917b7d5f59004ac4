package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubValidator struct {
	userID int64
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (int64, error) {
	s.seen = token
	return s.userID, s.err
}

func TestBearerAuthValidToken(t *testing.T) {
	v := &stubValidator{userID: 42}
	var gotID int64
	var gotOK bool
	handler := BearerAuth(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = UserIDFromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/account/me", nil)
	req.Header.Set("Authorization", "Bearer tok123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !gotOK || gotID != 42 {
		t.Errorf("context user: got %d ok=%v", gotID, gotOK)
	}
	if v.seen != "tok123" {
		t.Errorf("token passed to validator: %q", v.seen)
	}
}

func TestBearerAuthMissingHeader(t *testing.T) {
	handler := BearerAuth(&stubValidator{userID: 42})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached without credentials")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/account/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: got %d, want 401", header, rec.Code)
		}
	}
}

func TestBearerAuthInvalidToken(t *testing.T) {
	v := &stubValidator{err: errors.New("signature mismatch")}
	handler := BearerAuth(v)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/account/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestUserIDFromCtxMissing(t *testing.T) {
	if _, ok := UserIDFromCtx(context.Background()); ok {
		t.Error("bare context reported a user id")
	}
}
