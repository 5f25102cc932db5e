package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/utils"
)

// SessionCookieName is the cookie holding the raw session token
const SessionCookieName = "user_session"

type userContextKey struct{}

// OptionalUserAuth resolves a session from the user_session cookie or an
// Authorization: Bearer token and, when valid, stores the user in the
// request context. Requests without a valid session continue anonymously.
func OptionalUserAuth(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := users.GetSession(r.Context(), utils.HashToken(token))
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					slog.Error("failed to validate user session",
						"error", err,
						"ip", utils.GetRemoteIP(r),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetByID(r.Context(), session.UserID)
			if err != nil {
				slog.Warn("session references unknown user",
					"user_id", session.UserID,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// SessionToken extracts the raw session token from the request, preferring
// the cookie over the Authorization header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUserFromContext returns the authenticated user, or nil.
func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey{}).(*models.User)
	return user
}

// GetUserIDFromContext returns the authenticated user's id, or nil for
// anonymous requests.
func GetUserIDFromContext(ctx context.Context) *string {
	user := GetUserFromContext(ctx)
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}

// CanManageSoftware reports whether the request's user may attach software.
func CanManageSoftware(r *http.Request) bool {
	user := GetUserFromContext(r.Context())
	return user != nil && user.Role.CanManageSoftware()
}
