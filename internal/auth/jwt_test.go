package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

const secret = "test-secret"

func TestGenerateAndParse(t *testing.T) {
	t.Parallel()

	token, expiresAt, err := GenerateToken("user-1", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if d := time.Until(expiresAt) - time.Hour; d > 5*time.Second || d < -5*time.Second {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	userID, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("user id = %q", userID)
	}
	if _, err := ParseToken(token, "other-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGenerateValidates(t *testing.T) {
	t.Parallel()

	if _, _, err := GenerateToken("", secret, time.Hour); err == nil {
		t.Fatalf("expected error for empty user id")
	}
	if _, _, err := GenerateToken("u", "", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, _, err := GenerateToken("u", secret, 0); err == nil {
		t.Fatalf("expected error for zero lifetime")
	}
}

func serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	var got string
	e.Use(JWTMiddleware(secret, func(c echo.Context) bool { return c.Path() == "/ping" }))
	e.GET("/me", func(c echo.Context) error {
		id, err := UserIDFromContext(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		got = id
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, got
}

func TestMiddlewareHeaderAndQuery(t *testing.T) {
	token, _, err := GenerateToken("user-7", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if rec, got := serve(t, req); rec.Code != http.StatusNoContent || got != "user-7" {
		t.Fatalf("header token: status %d user %q", rec.Code, got)
	}

	if rec, got := serve(t, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)); rec.Code != http.StatusNoContent || got != "user-7" {
		t.Fatalf("query token: status %d user %q", rec.Code, got)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	if rec, _ := serve(t, httptest.NewRequest(http.MethodGet, "/me", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", rec.Code)
	}

	expired, _, err := GenerateToken("user-7", secret, time.Nanosecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(time.Millisecond)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	if rec, _ := serve(t, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status %d", rec.Code)
	}

	if rec, _ := serve(t, httptest.NewRequest(http.MethodGet, "/ping", nil)); rec.Code != http.StatusOK {
		t.Fatalf("skipped path: status %d", rec.Code)
	}
}
