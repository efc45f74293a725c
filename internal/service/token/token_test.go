package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ValeraFCDM/BookShop/internal/models"
)

var testJWTSecret = []byte("test_jwt_secret")
var testRefreshSecret = []byte("test_refresh_secret")

func newTokenService(t *testing.T) *TokenService {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return &TokenService{DB: db, JWTSecret: testJWTSecret, RefreshSecret: testRefreshSecret}
}

func issueRefresh(t *testing.T, ts *TokenService, userID uint, role string) string {
	refresh, err := SignRefreshToken(userID, role, ts.RefreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(ts.DB, refresh, userID, role))
	return refresh
}

func expiredAccessToken(t *testing.T, userID uint, role string) string {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(-time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTSecret)
	require.NoError(t, err)
	return signed
}

func middlewareContext(cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestRotateToken(t *testing.T) {
	ts := newTokenService(t)
	refresh := issueRefresh(t, ts, 1, "user")

	access, newRefresh, err := ts.RotateToken(refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEqual(t, refresh, newRefresh)

	var stored models.RefreshToken
	require.NoError(t, ts.DB.Where("token = ?", newRefresh).First(&stored).Error)
	require.Equal(t, uint(1), stored.UserID)
	require.False(t, stored.Revoked)
}

func TestRotateRevokedToken(t *testing.T) {
	ts := newTokenService(t)
	refresh := issueRefresh(t, ts, 1, "user")
	require.NoError(t, ts.RevokeRefresh(refresh))

	_, _, err := ts.RotateToken(refresh)
	require.Error(t, err)
}

func TestValidateRefreshRejectsAccessToken(t *testing.T) {
	ts := newTokenService(t)

	// A plain access token lacks the refresh type claim.
	access, err := SignAccessToken(1, "user", ts.RefreshSecret)
	require.NoError(t, err)

	_, err = ValidateRefresh(access, ts.RefreshSecret, ts.DB)
	require.Error(t, err)
}

func TestMiddlewarePassesValidToken(t *testing.T) {
	ts := newTokenService(t)
	access, err := SignAccessToken(7, "user", ts.JWTSecret)
	require.NoError(t, err)

	_, c := middlewareContext(&http.Cookie{Name: "accessToken", Value: access})
	called := false
	h := ts.AutoRefreshMiddleware(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, h(c))
	require.True(t, called)
	require.Equal(t, uint(7), c.Get("userID"))
	require.Equal(t, "user", c.Get("role"))
}

func TestMiddlewareAdminGate(t *testing.T) {
	ts := newTokenService(t)
	access, err := SignAccessToken(7, "user", ts.JWTSecret)
	require.NoError(t, err)

	_, c := middlewareContext(&http.Cookie{Name: "accessToken", Value: access})
	h := ts.AutoRefreshMiddlewareAdmin(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err = h(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestMiddlewareRotatesExpiredToken(t *testing.T) {
	ts := newTokenService(t)
	refresh := issueRefresh(t, ts, 3, "user")

	rec, c := middlewareContext(
		&http.Cookie{Name: "accessToken", Value: expiredAccessToken(t, 3, "user")},
		&http.Cookie{Name: "refreshToken", Value: refresh},
	)
	called := false
	h := ts.AutoRefreshMiddleware(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, h(c))
	require.True(t, called)
	require.Equal(t, uint(3), c.Get("userID"))

	names := make(map[string]bool)
	for _, ck := range rec.Result().Cookies() {
		names[ck.Name] = true
	}
	require.True(t, names["accessToken"], "rotation must set a fresh access cookie")
	require.True(t, names["refreshToken"], "rotation must set a fresh refresh cookie")
}

func TestMiddlewareRejectsAnonymous(t *testing.T) {
	ts := newTokenService(t)

	_, c := middlewareContext()
	h := ts.AutoRefreshMiddleware(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := h(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}
