package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rutvikswami/Intellidocs/config"
)

func TestSignAndValidateJWT(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-1", secret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var subject string
	handler := EchoAuthMiddleware(secret)(func(c echo.Context) error {
		subject, _ = SubjectFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if subject != "user-1" {
		t.Errorf("subject = %q, want user-1", subject)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := EchoAuthMiddleware([]byte("s"))(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-1", secret, -time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := EchoAuthMiddleware(secret)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err = handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
}

func TestLoadJWTSecret(t *testing.T) {
	cfg := &config.Config{}
	if _, err := LoadJWTSecret(cfg); err == nil {
		t.Fatal("expected error for empty secret")
	}
	cfg.Server.JWTSecret = "abc"
	secret, err := LoadJWTSecret(cfg)
	if err != nil {
		t.Fatalf("LoadJWTSecret: %v", err)
	}
	if string(secret) != "abc" {
		t.Errorf("secret = %q", secret)
	}
}
