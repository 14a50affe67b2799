// Package auth implements the token authority: signing and validation of
// the platform's four token kinds (client access/refresh, device token,
// device access token) and the persistence-backed lifecycle operations
// built on top of them.
package auth

import (
	"errors"
	"time"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators carried in the signed claims. All validators
// in the system must agree on these values.
const (
	TypeAccess            = "access"
	TypeRefresh           = "refresh"
	TypeDeviceToken       = "device_token"
	TypeDeviceAccessToken = "device_access_token"
)

// Claims are the signed token payload: registered subject/issued-at/
// expires-at plus the token type discriminator.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
}

// SignToken mints a signed HS256 token. Timestamps are truncated to whole
// seconds: sub-second precision does not round-trip through the claims.
// tokenID becomes the jti claim and may be empty for stateless tokens.
func SignToken(subject, tokenID, tokenType string, secretKey []byte, issuedAt time.Time, validity time.Duration) (string, error) {
	issuedAt = issuedAt.Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(validity)),
		},
		TokenType: tokenType,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and temporal claims of tokenString and
// checks its type discriminator. An expired but otherwise well-formed
// token yields common.ErrTokenExpired; any other defect yields
// common.ErrInvalidToken.
func ParseToken(tokenString, tokenType string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuedAt())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.TokenType != tokenType {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
