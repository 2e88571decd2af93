package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const userIDContextKey = "user_id"

var ErrInvalidToken = errors.New("invalid or expired token")

// ParseToken validates an HS256 token issued by this service and
// returns the user id carried in its subject claim. The admin routes
// reuse this so a logged-in user token works there alongside the
// static admin token.
func ParseToken(tokenString string) (uuid.UUID, error) {
	secretKey, err := jwtSecretFromEnv()
	if err != nil {
		return uuid.Nil, err
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	return userID, nil
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		token := strings.TrimSpace(h[7:])
		return token, token != ""
	}
	return "", false
}

// Middleware guards user routes. It requires a valid bearer JWT and
// stores the caller's user id on the request context.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString, ok := BearerToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing bearer token")
		}

		userID, err := ParseToken(tokenString)
		if errors.Is(err, ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Server auth configuration error")
		}

		c.Set(userIDContextKey, userID)
		return next(c)
	}
}

// GetUserIDFromContext returns the user id stored by Middleware.
func GetUserIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(userIDContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("user id not found in context")
	}
	return id, nil
}
