package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f *fakeBlacklist) IsTokenBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[tokenHash], nil
}

func issueToken(t *testing.T, secret, issuer string, roles []string) string {
	t.Helper()
	token, err := NewToken(secret, issuer, uuid.New().String(), roles, time.Minute)
	if err != nil {
		t.Fatalf("NewToken error: %v", err)
	}
	return token
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/attachments", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestJWTMiddleware_PutsClaimsInContext(t *testing.T) {
	secret, issuer := "test-secret", "luthier-test"
	token := issueToken(t, secret, issuer, []string{"technician"})

	var got *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	JWTMiddleware(secret, issuer, nil)(next).ServeHTTP(rec, authedRequest(token))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil {
		t.Fatal("expected claims in context")
	}
	if len(got.Roles) != 1 || got.Roles[0] != "technician" {
		t.Fatalf("expected technician role, got %v", got.Roles)
	}
}

func TestJWTMiddleware_RejectsMissingAndBadTokens(t *testing.T) {
	secret, issuer := "test-secret", "luthier-test"
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	})
	mw := JWTMiddleware(secret, issuer, nil)(next)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, authedRequest(""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, authedRequest("not-a-jwt"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, authedRequest(issueToken(t, secret, "someone-else", nil)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong issuer: expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, authedRequest(issueToken(t, "other-secret", issuer, nil)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_RejectsBlacklistedToken(t *testing.T) {
	secret, issuer := "test-secret", "luthier-test"
	token := issueToken(t, secret, issuer, []string{"technician"})
	bl := &fakeBlacklist{revoked: map[string]bool{HashToken(token): true}}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	})

	rec := httptest.NewRecorder()
	JWTMiddleware(secret, issuer, bl)(next).ServeHTTP(rec, authedRequest(token))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked token, got %d", rec.Code)
	}
}

func TestJWTMiddleware_FailsOpenWhenBlacklistUnavailable(t *testing.T) {
	secret, issuer := "test-secret", "luthier-test"
	token := issueToken(t, secret, issuer, []string{"technician"})
	bl := &fakeBlacklist{err: errors.New("redis down")}

	rec := httptest.NewRecorder()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	JWTMiddleware(secret, issuer, bl)(next).ServeHTTP(rec, authedRequest(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when blacklist check errors, got %d", rec.Code)
	}
}

func TestRequirePerm(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		required string
		want     int
	}{
		{"technician can upload", []string{"technician"}, PermFileUpload, http.StatusOK},
		{"technician cannot delete", []string{"technician"}, PermFileDelete, http.StatusForbidden},
		{"manager can delete", []string{"manager"}, PermFileDelete, http.StatusOK},
		{"admin bypasses any perm", []string{"admin"}, "entirely:made_up", http.StatusOK},
		{"unknown role has nothing", []string{"visitor"}, PermFileRead, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			handler := RequirePerm(tt.required)(next)

			req := authedRequest("")
			ctx := context.WithValue(req.Context(), ctxKeyClaims, &Claims{Roles: tt.roles})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req.WithContext(ctx))

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRequirePerm_NoClaims(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	})
	rec := httptest.NewRecorder()
	RequirePerm(PermFileRead)(next).ServeHTTP(rec, authedRequest(""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", rec.Code)
	}
}
