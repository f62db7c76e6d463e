package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisync/agrisync/internal/server/regions"
	"github.com/agrisync/agrisync/internal/server/storage"
	"github.com/agrisync/agrisync/internal/server/storage/sqlite"
	"github.com/agrisync/agrisync/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJWTConfig() JWTConfig {
	return JWTConfig{
		Secret:          []byte("test-secret-key-for-auth-tests"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func setupAuthHandler(t *testing.T) (*AuthHandler, *sqlite.Storage) {
	t.Helper()
	ctx := context.Background()

	registry, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close() })

	regional, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { regional.Close() })

	router := regions.NewRouter(registry, map[string]storage.RecordStorage{
		"east-africa": regional,
	})

	return NewAuthHandler(testLogger(), registry, registry, router, testJWTConfig()), registry
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func registerOwner(t *testing.T, h *AuthHandler, username string) api.RegisterResponse {
	t.Helper()

	rec := doJSON(t, h.Register, http.MethodPost, "/api/v1/auth/register", api.RegisterRequest{
		Username:   username,
		Password:   "correct-horse-battery",
		RegionCode: "east-africa",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp api.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandler_Register(t *testing.T) {
	h, registry := setupAuthHandler(t)

	resp := registerOwner(t, h, "amina_k")
	assert.NotEmpty(t, resp.OwnerID)
	assert.Equal(t, "east-africa", resp.RegionCode)

	owner, err := registry.GetOwnerByUsername(context.Background(), "amina_k")
	require.NoError(t, err)
	assert.Equal(t, resp.OwnerID, owner.ID)
	assert.Equal(t, "east-africa", owner.RegionCode)
	// The password is stored hashed, never verbatim.
	assert.NotContains(t, owner.PasswordHash, "correct-horse-battery")
}

func TestAuthHandler_RegisterDuplicate(t *testing.T) {
	h, _ := setupAuthHandler(t)

	registerOwner(t, h, "amina_k")

	rec := doJSON(t, h.Register, http.MethodPost, "/api/v1/auth/register", api.RegisterRequest{
		Username:   "amina_k",
		Password:   "another-long-password",
		RegionCode: "east-africa",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_RegisterUnservedRegion(t *testing.T) {
	h, _ := setupAuthHandler(t)

	rec := doJSON(t, h.Register, http.MethodPost, "/api/v1/auth/register", api.RegisterRequest{
		Username:   "kofi_a",
		Password:   "correct-horse-battery",
		RegionCode: "west-africa",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "east-africa")
}

func TestAuthHandler_RegisterWeakPassword(t *testing.T) {
	h, _ := setupAuthHandler(t)

	rec := doJSON(t, h.Register, http.MethodPost, "/api/v1/auth/register", api.RegisterRequest{
		Username:   "kofi_a",
		Password:   "short",
		RegionCode: "east-africa",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	h, _ := setupAuthHandler(t)

	reg := registerOwner(t, h, "amina_k")

	rec := doJSON(t, h.Login, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{
		Username: "amina_k",
		Password: "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, reg.OwnerID, resp.OwnerID)
	assert.Equal(t, "east-africa", resp.RegionCode)
	assert.Equal(t, int64(15*60), resp.ExpiresIn)

	claims, err := ValidateAccessToken(testJWTConfig(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.OwnerID, claims.OwnerID)
	assert.Equal(t, "amina_k", claims.Username)
	assert.Equal(t, "east-africa", claims.RegionCode)
}

func TestAuthHandler_LoginWrongPassword(t *testing.T) {
	h, _ := setupAuthHandler(t)

	registerOwner(t, h, "amina_k")

	rec := doJSON(t, h.Login, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{
		Username: "amina_k",
		Password: "not-the-right-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_LoginUnknownOwner(t *testing.T) {
	h, _ := setupAuthHandler(t)

	rec := doJSON(t, h.Login, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{
		Username: "nobody_here",
		Password: "whatever-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_RefreshRotatesToken(t *testing.T) {
	h, _ := setupAuthHandler(t)

	registerOwner(t, h, "amina_k")
	login := doJSON(t, h.Login, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{
		Username: "amina_k",
		Password: "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, login.Code)

	var tokens api.TokenResponse
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &tokens))

	rec := doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", api.RefreshRequest{
		RefreshToken: tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var refreshed api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)

	// The old refresh token was rotated out and must not work again.
	rec = doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", api.RefreshRequest{
		RefreshToken: tokens.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The new one does.
	rec = doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", api.RefreshRequest{
		RefreshToken: refreshed.RefreshToken,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthHandler_RefreshUnknownToken(t *testing.T) {
	h, _ := setupAuthHandler(t)

	rec := doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", api.RefreshRequest{
		RefreshToken: "made-up-token",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	h, _ := setupAuthHandler(t)

	registerOwner(t, h, "amina_k")
	login := doJSON(t, h.Login, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{
		Username: "amina_k",
		Password: "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, login.Code)

	var tokens api.TokenResponse
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &tokens))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// All refresh tokens are revoked.
	refresh := doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", api.RefreshRequest{
		RefreshToken: tokens.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, refresh.Code)
}

func TestAuthHandler_LogoutWithoutToken(t *testing.T) {
	h, _ := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
