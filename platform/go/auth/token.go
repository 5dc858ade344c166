package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignToken mints an HMAC-signed token for the given principal. Production
// tokens come from the identity provider; this is for tests and the dev CLI.
func SignToken(secret []byte, p Principal, expiresIn time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("signing secret is required")
	}

	c := claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	if p.CompanyID != nil {
		c.CompanyID = p.CompanyID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
