package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/ports"
	"budgetly/internal/storage/memory"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$") {
		t.Errorf("unexpected PHC prefix: %s", hash)
	}

	ok, err := VerifyPassword("correct horse", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(correct) = %v, %v", ok, err)
	}
	ok, err = VerifyPassword("wrong horse", hash)
	if err != nil || ok {
		t.Errorf("VerifyPassword(wrong) = %v, %v", ok, err)
	}

	other, _ := HashPassword("correct horse")
	if other == hash {
		t.Error("expected distinct salts per hash")
	}
}

func TestVerifyPassword_InvalidHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
		want error
	}{
		{"empty", "", ErrInvalidHash},
		{"wrong algorithm", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidHash},
		{"wrong version", "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA", ErrIncompatibleVersion},
		{"bad params", "$argon2id$v=19$x$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA", ErrInvalidHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := VerifyPassword("pw", tt.hash); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMemorySessionStore_Expires(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(10, 20*time.Millisecond)

	token, err := s.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id, err := s.Lookup(ctx, token); err != nil || id != "u1" {
		t.Fatalf("Lookup = %q, %v", id, err)
	}

	time.Sleep(40 * time.Millisecond)
	if _, err := s.Lookup(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Lookup after TTL = %v, want ErrSessionNotFound", err)
	}
}

func TestMemorySessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(10, time.Hour)

	token, _ := s.Create(ctx, "u1")
	if err := s.Delete(ctx, token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Lookup(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Lookup after Delete = %v", err)
	}
	if _, err := s.Lookup(ctx, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Lookup(\"\") = %v", err)
	}
}

func newTestService() *Service {
	return NewService(memory.New(), NewMemorySessionStore(100, time.Hour), nil)
}

func TestService_SignUpSignInSignOut(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	u, token, err := svc.SignUp(ctx, " Alice@Example.com ", "password123")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if u.Email != "alice@example.com" || token == "" {
		t.Errorf("SignUp = %+v, %q", u, token)
	}

	if _, _, err := svc.SignUp(ctx, "alice@example.com", "password123"); !errors.Is(err, ports.ErrEmailExists) {
		t.Errorf("duplicate SignUp = %v, want ErrEmailExists", err)
	}
	if _, _, err := svc.SignUp(ctx, "bob@example.com", "short"); !errors.Is(err, core.ErrPasswordTooShort) {
		t.Errorf("short password = %v", err)
	}

	if _, _, err := svc.SignIn(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password = %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user = %v", err)
	}

	_, token2, err := svc.SignIn(ctx, "ALICE@example.com", "password123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	got, err := svc.Authenticate(ctx, token2)
	if err != nil || got.ID != u.ID {
		t.Errorf("Authenticate = %+v, %v", got, err)
	}

	if err := svc.SignOut(ctx, token2); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := svc.Authenticate(ctx, token2); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Authenticate after SignOut = %v", err)
	}
}

func TestRequireSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	u, token, err := svc.SignUp(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	var seen string
	h := svc.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		headers    map[string]string
		wantStatus int
		wantHeader string
	}{
		{"valid session", http.MethodGet, "/", token, nil, http.StatusNoContent, ""},
		{"browser redirect", http.MethodGet, "/", "", map[string]string{"Accept": "text/html"}, http.StatusSeeOther, "Location"},
		{"htmx request", http.MethodPost, "/expenses", "", map[string]string{"HX-Request": "true"}, http.StatusUnauthorized, "HX-Redirect"},
		{"api request", http.MethodGet, "/api/v1/expenses", "bogus", nil, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.token})
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantHeader != "" && rec.Header().Get(tt.wantHeader) != "/signin" {
				t.Errorf("%s = %q, want /signin", tt.wantHeader, rec.Header().Get(tt.wantHeader))
			}
			if tt.wantStatus == http.StatusNoContent && seen != u.ID {
				t.Errorf("user in context = %q, want %q", seen, u.ID)
			}
		})
	}
}

func TestSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", time.Hour, true)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || c.Value != "tok" || !c.HttpOnly || !c.Secure || c.MaxAge != 3600 {
		t.Errorf("cookie = %+v", c)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	if TokenFromRequest(req) != "tok" {
		t.Errorf("TokenFromRequest = %q", TokenFromRequest(req))
	}
}
