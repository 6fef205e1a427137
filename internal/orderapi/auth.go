package orderapi

import (
	"errors"
	"strings"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const userIDKey = "user_id"

// bearerAuth verifies an HS256 bearer token and stores its subject as the
// caller's user ID.
func bearerAuth(secret []byte) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			const op = "orderapi.auth"

			scheme, raw, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return domain.Unauthorized(op, "Authorization bearer token is required")
			}

			var claims jwt.RegisteredClaims
			if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, keyFunc); err != nil {
				msg := "Invalid access token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "Access token expired"
				}
				return domain.WrapError(err, domain.EUNAUTHORIZED, op, msg)
			}
			if claims.Subject == "" {
				return domain.Unauthorized(op, "Access token has no subject")
			}

			c.Set(userIDKey, claims.Subject)
			ctx := c.Request().Context()
			l := zerolog.Ctx(ctx).With().Str("user_id", claims.Subject).Logger()
			c.SetRequest(c.Request().WithContext(l.WithContext(ctx)))
			return next(c)
		}
	}
}

func currentUser(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
