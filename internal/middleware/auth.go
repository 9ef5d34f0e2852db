package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopair/internal/handlers"
	"github.com/HammerMeetNail/lingopair/internal/logging"
	"github.com/HammerMeetNail/lingopair/internal/models"
	"github.com/HammerMeetNail/lingopair/internal/services"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrNoSigningKey = errors.New("session signing key is empty")
)

// UserLoader resolves the subject of a session token.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware accepts session tokens issued by the account service: HS256
// JWTs carrying a userId claim, sent either as a cookie or a bearer token.
type AuthMiddleware struct {
	users      UserLoader
	secret     []byte
	cookieName string
}

func NewAuthMiddleware(users UserLoader, secret, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{users: users, secret: []byte(secret), cookieName: cookieName}
}

// Authenticate attaches the user to the request context when a valid token is
// present. Requests without one pass through unauthenticated.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := m.tokenFromRequest(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := ParseSessionToken(m.secret, raw)
		if err != nil {
			logging.Debug("Rejected session token", map[string]interface{}{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetByID(r.Context(), userID)
		if errors.Is(err, services.ErrNotFound) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			// The token is valid; the directory is not answering.
			logging.Error("Failed to load session user", map[string]interface{}{
				"error":   err.Error(),
				"user_id": userID.String(),
			})
			writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.SetUserInContext(r.Context(), user)))
	})
}

func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized - No token provided")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// SignSessionToken issues a token Authenticate accepts.
func SignSessionToken(secret []byte, userID uuid.UUID, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSigningKey
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID.String(),
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// ParseSessionToken rejects every token when secret is empty.
func ParseSessionToken(secret []byte, raw string) (uuid.UUID, error) {
	if len(secret) == 0 {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrNoSigningKey)
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	sub, ok := claims["userId"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing userId", ErrInvalidToken)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return userID, nil
}
