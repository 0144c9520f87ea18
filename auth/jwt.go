package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"faint-memory-server/calcerrors"
)

const (
	adminSubject = "admin"
	issuer       = "faint-memory-server"
)

// AdminTokens issues and checks the signed value of the admin session cookie.
type AdminTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAdminTokens returns a token issuer. An empty secret gets a random one,
// which means sessions do not survive a restart.
func NewAdminTokens(secret string, ttl time.Duration) (*AdminTokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	return &AdminTokens{secret: key, ttl: ttl, now: time.Now}, nil
}

// TTL returns the session lifetime.
func (a *AdminTokens) TTL() time.Duration {
	return a.ttl
}

// Issue returns a signed HS256 token for the admin session.
func (a *AdminTokens) Issue() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate checks a token produced by Issue.
func (a *AdminTokens) Validate(tokenString string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithIssuer(issuer),
		jwt.WithSubject(adminSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("admin session: %v: %w", err, calcerrors.ErrUnauthorized)
	}
	if !token.Valid {
		return fmt.Errorf("admin session: invalid token: %w", calcerrors.ErrUnauthorized)
	}
	return nil
}

// CheckPassword compares in constant time. An empty expected password never matches.
func CheckPassword(expected, given string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// JWKSValidator validates bearer tokens from an external identity provider.
type JWKSValidator struct {
	jwks keyfunc.Keyfunc
}

// NewJWKSValidator fetches keys from jwksURL. An empty URL returns (nil, nil).
func NewJWKSValidator(jwksURL string) (*JWKSValidator, error) {
	if jwksURL == "" {
		return nil, nil
	}
	jwks, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, err
	}
	return &JWKSValidator{jwks: jwks}, nil
}

// Validate parses a bearer token and returns its claims. A nil validator rejects everything.
func (v *JWKSValidator) Validate(tokenString string) (jwt.MapClaims, error) {
	if v == nil {
		return nil, fmt.Errorf("no identity provider configured: %w", calcerrors.ErrUnauthorized)
	}
	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("bearer token: %v: %w", err, calcerrors.ErrUnauthorized)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", calcerrors.ErrUnauthorized)
	}
	return claims, nil
}

// SubjectFromClaims returns the user id from claims ("sub" or "id").
func SubjectFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}
