package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token claims issued by the identity provider. The
// subject carries the user id.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth validates HS256 bearer tokens and stores the caller id in the
// user_id local.
func JWTAuth(secret []byte) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		claims := &Claims{}
		token, err := parser.ParseWithClaims(tokenStr, claims, keyFunc)
		if err != nil || !token.Valid {
			return fiber.NewError(http.StatusUnauthorized, "invalid or expired token")
		}
		uid := claims.Subject
		if uid == "" {
			uid = claims.UserID
		}
		if uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "token has no subject")
		}

		c.Locals("user_id", uid)
		return c.Next()
	}
}
