package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/logging"
)

const (
	localUserID   = "user_id"
	AnonymousUser = "anonymous"
)

// Authenticator verifies HS256 bearer tokens. The subject claim is the user id.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns an authenticator for secret. An empty secret runs
// in development mode: every request is treated as the anonymous user.
func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		logging.Warn().Msg("[AUTH] No JWT secret configured, all requests run as anonymous")
		return &Authenticator{}
	}
	return &Authenticator{secret: []byte(secret)}
}

// Middleware rejects requests without a valid token and stores the user id in the context locals.
func (a *Authenticator) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(a.secret) == 0 {
			c.Locals(localUserID, AnonymousUser)
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return writeError(c, fmt.Errorf("%w: missing bearer token", entity.ErrUnauthorized))
		}

		userID, err := a.ValidateToken(raw)
		if err != nil {
			logging.Debug().Err(err).Msg("[AUTH] Rejected token")
			return writeError(c, err)
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// ValidateToken returns the subject of a valid token.
func (a *Authenticator) ValidateToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", entity.ErrUnauthorized)
	}
	return claims.Subject, nil
}

func userID(c *fiber.Ctx) (string, error) {
	id, ok := c.Locals(localUserID).(string)
	if !ok || id == "" {
		return "", entity.ErrUnauthorized
	}
	return id, nil
}
