package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/ValeraFCDM/BookShop/internal/hash"
	"github.com/ValeraFCDM/BookShop/internal/models"
	"github.com/ValeraFCDM/BookShop/internal/mykafka"
)

func newAuthHandler(t *testing.T) *AuthHandler {
	return &AuthHandler{
		DB:            initTestDB(t),
		JWTSecret:     testJWTSecret,
		RefreshSecret: testRefreshSecret,
		Producer:      &mykafka.Producer{},
	}
}

func registerPayload() map[string]string {
	return map[string]string{
		"username":         "test_user",
		"email":            "user@example.com",
		"phone_number":     "9001234567",
		"password":         "password123",
		"confirm_password": "password123",
	}
}

func TestRegister(t *testing.T) {
	h := newAuthHandler(t)
	e := echo.New()

	rec, c := doJSONRequest(t, e, http.MethodPost, "/register", registerPayload())
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.Equal(t, "test_user", user.Username)
	require.Equal(t, "user@example.com", user.Email)
	require.Equal(t, "user", user.Role)
	require.NotEmpty(t, user.ID)

	var stored models.User
	require.NoError(t, h.DB.First(&stored, user.ID).Error)
	require.NotEqual(t, "password123", stored.PasswordHash)
}

func TestRegisterDuplicate(t *testing.T) {
	h := newAuthHandler(t)
	e := echo.New()

	_, c := doJSONRequest(t, e, http.MethodPost, "/register", registerPayload())
	require.NoError(t, h.Register(c))

	// Same email, different username and phone.
	payload := registerPayload()
	payload["username"] = "another_user"
	payload["phone_number"] = "9007654321"
	_, c = doJSONRequest(t, e, http.MethodPost, "/register", payload)

	err := h.Register(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := newAuthHandler(t)
	e := echo.New()

	cases := map[string]map[string]string{
		"short username":    {"username": "ab"},
		"bad email":         {"email": "not-an-email"},
		"short phone":       {"phone_number": "12345"},
		"letters in phone":  {"phone_number": "90012345ab"},
		"short password":    {"password": "short", "confirm_password": "short"},
		"password mismatch": {"confirm_password": "different123"},
	}
	for name, override := range cases {
		payload := registerPayload()
		for k, v := range override {
			payload[k] = v
		}
		_, c := doJSONRequest(t, e, http.MethodPost, "/register", payload)
		err := h.Register(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok, "%s: expected HTTPError", name)
		require.Equal(t, http.StatusBadRequest, he.Code, name)
	}
}

func TestLogin(t *testing.T) {
	h := newAuthHandler(t)
	e := echo.New()

	passwordHash, _ := hash.HashPassword("password123")
	user := models.User{
		Username:     "test_user",
		Email:        "user@example.com",
		PhoneNumber:  "9001234567",
		PasswordHash: passwordHash,
		Role:         "user",
	}
	h.DB.Create(&user)

	load := map[string]string{
		"email":    "user@example.com",
		"password": "password123",
	}
	rec, c := doJSONRequest(t, e, http.MethodPost, "/login", load)
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["access_token"])
	require.NotEmpty(t, resp["refresh_token"])
	require.Equal(t, false, resp["is_admin"])

	var stored models.RefreshToken
	require.NoError(t, h.DB.Where("user_id = ?", user.ID).First(&stored).Error)
	require.False(t, stored.Revoked)

	load["password"] = "wrong_password"
	_, c = doJSONRequest(t, e, http.MethodPost, "/login", load)
	err := h.Login(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLogOut(t *testing.T) {
	h := newAuthHandler(t)
	e := echo.New()

	_, c := doJSONRequest(t, e, http.MethodPost, "/register", registerPayload())
	require.NoError(t, h.Register(c))

	load := map[string]string{
		"email":    "user@example.com",
		"password": "password123",
	}
	recLogin, cLogin := doJSONRequest(t, e, http.MethodPost, "/login", load)
	require.NoError(t, h.Login(cLogin))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(recLogin.Body.Bytes(), &resp))
	refreshToken, _ := resp["refresh_token"].(string)
	require.NotEmpty(t, refreshToken)

	recLogout, cLogout := doJSONRequest(t, e, http.MethodPost, "/logout", nil,
		&http.Cookie{Name: "refreshToken", Value: refreshToken, Path: "/"})
	require.NoError(t, h.LogOut(cLogout))
	require.Equal(t, http.StatusOK, recLogout.Code)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(recLogout.Body.Bytes(), &msg))
	require.Equal(t, "logged out", msg["message"])

	var stored models.RefreshToken
	require.NoError(t, h.DB.Where("token = ?", refreshToken).First(&stored).Error)
	require.True(t, stored.Revoked)
}
