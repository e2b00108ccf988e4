// Package auth encodes and decodes the signed identity tokens handed out by
// the auth service.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// ErrBearerNotFound is returned by Decode when the header has no token segment.
var ErrBearerNotFound = fmt.Errorf("%w: Bearer not found", common.ErrorUnauthorized)

// Claims carries the subject and issue time. No exp claim is set; expiry
// is enforced against the cached token.
type Claims struct {
	jwt.RegisteredClaims
}

type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenCodec accepts only HMAC algorithms (HS256, HS384, HS512).
func NewTokenCodec(secret, algorithm string) (*TokenCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: secret key is empty", common.ErrorConfig)
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported token algorithm %q", common.ErrorConfig, algorithm)
	}
	return &TokenCodec{secret: []byte(secret), method: method, now: time.Now}, nil
}

// Encode issues a token for subject stamped with the current time.
func (c *TokenCodec) Encode(subject string) (*models.Token, error) {
	// NumericDate has second precision
	issuedAt := c.now().UTC().Truncate(time.Second)

	token := jwt.NewWithClaims(c.method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	})

	encoded, err := token.SignedString(c.secret)
	if err != nil {
		return nil, err
	}

	return &models.Token{Subject: subject, IssuedAt: issuedAt, EncodedToken: encoded}, nil
}

// Decode parses a "Bearer <token>" header. A header without a token
// segment yields ErrBearerNotFound (unauthorized); any verification or
// parse failure yields common.ErrorUnprocessable.
func (c *TokenCodec) Decode(bearerHeader string) (*models.Token, error) {
	raw, ok := bearerToken(bearerHeader)
	if !ok {
		return nil, ErrBearerNotFound
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{c.method.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorUnprocessable, err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnprocessable, common.ErrInvalidToken)
	}

	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing claims", common.ErrorUnprocessable)
	}

	return &models.Token{
		Subject:      claims.Subject,
		IssuedAt:     claims.IssuedAt.UTC(),
		EncodedToken: raw,
	}, nil
}

// bearerToken splits the header on its first whitespace run and returns
// the remainder.
func bearerToken(header string) (string, bool) {
	s := strings.TrimLeftFunc(header, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	return rest, rest != ""
}

// IsBearerNotFound reports whether err came from a header with no token.
func IsBearerNotFound(err error) bool {
	return errors.Is(err, ErrBearerNotFound)
}
