package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/ocgrimoire/grimoire-api/internal/api/shared"
	"github.com/ocgrimoire/grimoire-api/internal/platform/logger"
	"github.com/ocgrimoire/grimoire-api/internal/redact"
	"github.com/ocgrimoire/grimoire-api/internal/service/auth"
)

// UnauthorizedMessage is the body of every authentication failure. Clients
// are not told why a token was refused.
const UnauthorizedMessage = "Unauthorized"

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	if jwtService == nil {
		panic("jwtService cannot be nil")
	}
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Authenticate validates the bearer token in the Authorization header and
// adds the user ID to the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		token, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			log.Debug("rejected request without bearer token")
			shared.RespondWithError(w, r, http.StatusUnauthorized, UnauthorizedMessage)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil || claims == nil || claims.UserID == uuid.Nil {
			reason := "missing claims"
			if err != nil {
				reason = redact.Error(err)
			}
			level := slog.LevelDebug
			if err != nil && !errors.Is(err, auth.ErrInvalidToken) &&
				!errors.Is(err, auth.ErrExpiredToken) && !errors.Is(err, auth.ErrTokenNotYetValid) {
				level = slog.LevelWarn
			}
			log.Log(r.Context(), level, "token rejected", slog.String("reason", reason))
			shared.RespondWithError(w, r, http.StatusUnauthorized, UnauthorizedMessage)
			return
		}

		ctx := shared.WithUserID(r.Context(), claims.UserID)
		ctx = logger.WithLogger(ctx, log.With(slog.String("user_id", claims.UserID.String())))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from "Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", auth.ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}

// GetUserID extracts the user ID from the request context.
// Returns the user ID and a boolean indicating if it was found.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	return shared.GetUserID(r.Context())
}
