package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/classboard-go-api/internal/utils"
)

// JWTProtected returns a middleware that validates HMAC-signed bearer
// tokens and binds the caller's identity to the request. Tokens issued for
// teachers carry the numeric account id in "sub" (or "uid") and the role in
// "role"; downstream handlers read both from fiber locals.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := parseBearerToken(c.Get("Authorization"), secret)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "token carries no usable claims")
		}

		if userID, ok := subjectClaim(claims); ok {
			c.Locals("user_id", userID)
		}
		if role := roleClaim(claims); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func parseBearerToken(header, secret string) (*jwt.Token, error) {
	if strings.TrimSpace(header) == "" {
		return nil, fmt.Errorf("missing bearer token")
	}

	const prefix = "bearer "
	if !strings.HasPrefix(strings.ToLower(header), prefix) {
		return nil, fmt.Errorf("authorization header is not a bearer token")
	}

	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" {
		return nil, fmt.Errorf("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("bearer token invalid or expired")
	}

	return token, nil
}

func subjectClaim(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "uid", "user_id"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case float64:
			if v >= 0 {
				return uint(v), true
			}
		case string:
			if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
				return uint(parsed), true
			}
		}
	}

	return 0, false
}

func roleClaim(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if role := normalizeRole(value); role != "" {
			return role
		}
	}

	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := strings.ToLower(strings.TrimSpace(str)); role != "" {
					return role
				}
			}
		}
	}

	return ""
}
