package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	signed, expiresAt, err := GenerateToken("acct-1", "admin", "alice", "secret", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	parsed, err := jwt.ParseWithClaims(signed, new(Claims), func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(*Claims)
	assert.Equal(t, "acct-1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "alice", claims.Username)
}

func TestGenerateTokenEmptySecret(t *testing.T) {
	_, _, err := GenerateToken("acct-1", "admin", "alice", "", time.Hour)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(JWTMiddleware("secret", func(c echo.Context) bool {
		return c.Request().URL.Path == "/open"
	}))
	e.GET("/open", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/protected", func(c echo.Context) error {
		id, err := AccountIDFromContext(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, id)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	signed, _, err := GenerateToken("acct-1", "operator", "bob", "secret", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acct-1", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorFromContext(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, "", ActorFromContext(c), "unauthenticated context yields empty actor")

	c.Set("user", jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "acct-1"},
		Username:         "alice",
	}))
	assert.Equal(t, "alice", ActorFromContext(c))

	c.Set("user", jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "acct-2"},
	}))
	assert.Equal(t, "acct-2", ActorFromContext(c))
}
