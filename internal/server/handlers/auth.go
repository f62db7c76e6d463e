// Package handlers implements the HTTP surface of the sync coordinator:
// owner auth, push/pull and health.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrisync/agrisync/internal/models"
	"github.com/agrisync/agrisync/internal/server/regions"
	"github.com/agrisync/agrisync/internal/server/storage"
	"github.com/agrisync/agrisync/internal/validation"
	"github.com/agrisync/agrisync/pkg/api"
)

// AuthHandler handles registration, login and token refresh.
type AuthHandler struct {
	logger    *slog.Logger
	owners    storage.OwnerStorage
	tokens    storage.TokenStorage
	router    *regions.Router
	jwtConfig JWTConfig
}

// NewAuthHandler creates the auth handler. The router is consulted at
// registration so an account can never be created in an unserved region.
func NewAuthHandler(
	logger *slog.Logger,
	owners storage.OwnerStorage,
	tokens storage.TokenStorage,
	router *regions.Router,
	jwtConfig JWTConfig,
) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		owners:    owners,
		tokens:    tokens,
		router:    router,
		jwtConfig: jwtConfig,
	}
}

// Register handles POST /api/v1/auth/register. The region is fixed here
// and cannot be changed for the lifetime of the account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		h.logger.WarnContext(ctx, "invalid username", slog.String("username", req.Username), slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RegionCode == "" {
		sendError(h.logger, w, "region_code is required", http.StatusBadRequest)
		return
	}
	if !h.router.Known(req.RegionCode) {
		h.logger.WarnContext(ctx, "registration for unserved region", slog.String("region", req.RegionCode))
		msg := fmt.Sprintf("region %q is not served, available regions: %s",
			req.RegionCode, strings.Join(h.router.Regions(), ", "))
		sendError(h.logger, w, msg, http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	owner := &models.Owner{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: string(hash),
		RegionCode:   req.RegionCode,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.owners.CreateOwner(ctx, owner); err != nil {
		if errors.Is(err, storage.ErrOwnerExists) {
			h.logger.WarnContext(ctx, "owner already exists", slog.String("username", req.Username))
			sendError(h.logger, w, "username already taken", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create owner", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "owner registered",
		slog.String("username", req.Username),
		slog.String("owner_id", owner.ID),
		slog.String("region", owner.RegionCode))

	sendJSON(h.logger, w, api.RegisterResponse{
		OwnerID:    owner.ID,
		RegionCode: owner.RegionCode,
		Message:    "account created",
	}, http.StatusCreated)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	owner, err := h.owners.GetOwnerByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrOwnerNotFound) {
			h.logger.WarnContext(ctx, "login failed: owner not found", slog.String("username", req.Username))
			sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get owner", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte(req.Password)); err != nil {
		h.logger.WarnContext(ctx, "login failed: wrong password", slog.String("username", req.Username))
		sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	resp, err := h.issueTokens(r, owner)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue tokens", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.owners.UpdateLastLogin(ctx, owner.ID, time.Now().UTC()); err != nil {
		// Not fatal, the login itself succeeded.
		h.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}

	h.logger.InfoContext(ctx, "owner logged in",
		slog.String("username", req.Username),
		slog.String("owner_id", owner.ID))

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Refresh handles POST /api/v1/auth/refresh. The presented refresh token
// is rotated: it is deleted and a new pair is issued.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RefreshToken == "" {
		sendError(h.logger, w, "refresh_token is required", http.StatusBadRequest)
		return
	}

	stored, err := h.tokens.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			h.logger.WarnContext(ctx, "refresh token not found")
			sendError(h.logger, w, "invalid refresh token", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get refresh token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if stored.Expired() {
		h.logger.WarnContext(ctx, "refresh token expired", slog.String("owner_id", stored.OwnerID))
		_ = h.tokens.DeleteRefreshToken(ctx, req.RefreshToken)
		sendError(h.logger, w, "refresh token expired", http.StatusUnauthorized)
		return
	}

	owner, err := h.owners.GetOwnerByID(ctx, stored.OwnerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get owner", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.tokens.DeleteRefreshToken(ctx, req.RefreshToken); err != nil {
		h.logger.WarnContext(ctx, "failed to delete rotated refresh token", slog.Any("error", err))
	}

	resp, err := h.issueTokens(r, owner)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue tokens", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "tokens refreshed", slog.String("owner_id", owner.ID))
	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Logout handles POST /api/v1/auth/logout. Revokes every refresh token of
// the owner named by the presented access token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accessToken, err := bearerToken(r)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusUnauthorized)
		return
	}

	claims, err := ValidateAccessToken(h.jwtConfig, accessToken)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid access token", slog.Any("error", err))
		sendError(h.logger, w, "invalid or expired access token", http.StatusUnauthorized)
		return
	}

	deleted, err := h.tokens.DeleteOwnerTokens(ctx, claims.OwnerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to delete owner tokens", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "owner logged out",
		slog.String("owner_id", claims.OwnerID),
		slog.Int("tokens_deleted", deleted))

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) issueTokens(r *http.Request, owner *models.Owner) (*api.TokenResponse, error) {
	accessToken, expiresIn, err := GenerateAccessToken(h.jwtConfig, owner.ID, owner.Username, owner.RegionCode)
	if err != nil {
		return nil, err
	}

	refreshToken, expiresAt, err := GenerateRefreshToken(h.jwtConfig)
	if err != nil {
		return nil, err
	}

	if err := h.tokens.SaveRefreshToken(r.Context(), &models.RefreshToken{
		Token:     refreshToken,
		OwnerID:   owner.ID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	return &api.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		OwnerID:      owner.ID,
		RegionCode:   owner.RegionCode,
		ExpiresIn:    expiresIn,
	}, nil
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("Authorization header is required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	return parts[1], nil
}

func sendJSON(logger *slog.Logger, w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

func sendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	sendJSON(logger, w, api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}, statusCode)
}
