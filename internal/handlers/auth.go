package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/middleware"
	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/utils"
)

// failedLoginDelay slows down credential guessing. Tests set it to zero.
var failedLoginDelay = 500 * time.Millisecond

func sessionCookie(cfg *config.Config, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.HTTPSEnabled,
		SameSite: http.SameSiteStrictMode,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	return c
}

// LoginHandler authenticates a user by email and password and opens a session.
func LoginHandler(users repository.UserRepository, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientIP := utils.GetClientIPWithTrust(r, cfg.TrustProxyHeaders, cfg.TrustedProxyIPs)

		var req models.LoginRequest
		r.Body = http.MaxBytesReader(w, r.Body, 1024*1024) // 1MB limit
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("failed to parse login request", "error", err, "ip", clientIP)
			sendError(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		req.Email = strings.TrimSpace(req.Email)

		if msg := utils.ValidateStruct(req); msg != "" {
			sendError(w, http.StatusBadRequest, msg)
			return
		}

		user, err := users.GetByEmail(ctx, req.Email)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get user", "error", err)
			sendError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		if user == nil || !utils.VerifyPassword(user.PasswordHash, req.Password) {
			slog.Warn("user login failed - invalid credentials",
				"email", req.Email,
				"ip", clientIP,
			)
			time.Sleep(failedLoginDelay)
			sendError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		token, err := utils.GenerateSessionToken()
		if err != nil {
			slog.Error("failed to generate session token", "error", err)
			sendError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		expiresAt := time.Now().UTC().Add(time.Duration(cfg.SessionExpiryHours) * time.Hour)
		session := &models.UserSession{
			TokenHash: utils.HashToken(token),
			UserID:    user.ID,
			ExpiresAt: expiresAt,
			IPAddress: clientIP,
			UserAgent: utils.GetUserAgent(r),
		}
		if err := users.CreateSession(ctx, session); err != nil {
			slog.Error("failed to create session", "error", err, "user_id", user.ID)
			sendError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		http.SetCookie(w, sessionCookie(cfg, token, expiresAt))

		slog.Info("user login successful",
			"user_id", user.ID,
			"role", user.Role,
			"ip", clientIP,
		)

		sendJSON(w, http.StatusOK, models.LoginResponse{
			Token:     token,
			ExpiresAt: expiresAt,
			User:      user.ToInfo(),
		})
	}
}

// LogoutHandler deletes the caller's session and clears the cookie.
// It succeeds even without a session.
func LogoutHandler(users repository.UserRepository, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := middleware.SessionToken(r); token != "" {
			if err := users.DeleteSession(r.Context(), utils.HashToken(token)); err != nil {
				slog.Error("failed to delete session", "error", err)
				sendError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
		}

		http.SetCookie(w, sessionCookie(cfg, "", time.Time{}))

		if user := middleware.GetUserFromContext(r.Context()); user != nil {
			slog.Info("user logout successful", "user_id", user.ID, "ip", utils.GetRemoteIP(r))
		}

		sendMessage(w, http.StatusOK, "Logged out")
	}
}
