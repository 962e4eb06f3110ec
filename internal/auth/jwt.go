package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of a token issued without an explicit TTL.
const DefaultTokenTTL = time.Hour

// Claims defines the JWT claims structure. The subject is carried both in
// the registered "sub" claim and in "user", which existing clients read.
type Claims struct {
	User string `json:"user"`
	jwt.RegisteredClaims
}

// Token is a signed bearer credential together with its decoded fields.
type Token struct {
	Value     string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs new tokens with a symmetric key.
type Issuer struct {
	key        []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an Issuer. A zero defaultTTL falls back to DefaultTokenTTL.
func NewIssuer(secret string, defaultTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("signing key is empty")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	return &Issuer{key: []byte(secret), defaultTTL: defaultTTL, now: time.Now}, nil
}

// Issue creates a new token for an already authenticated subject.
// A ttl of zero or less uses the issuer's default.
func (i *Issuer) Issue(subject string, ttl time.Duration) (Token, error) {
	if ttl <= 0 {
		ttl = i.defaultTTL
	}

	issuedAt := i.now()
	expiresAt := issuedAt.Add(ttl)
	claims := &Claims{
		User: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return Token{
		Value:     signed,
		Subject:   subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// DefaultTTL returns the lifetime applied when Issue gets no TTL.
func (i *Issuer) DefaultTTL() time.Duration {
	return i.defaultTTL
}

// Verifier checks token signatures and expiry.
type Verifier struct {
	key []byte
	now func() time.Time
}

// NewVerifier creates a Verifier for tokens signed with secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("signing key is empty")
	}
	return &Verifier{key: []byte(secret), now: time.Now}, nil
}

// Verify parses a token string and returns its decoded fields. It fails with
// ErrExpired for a correctly signed but expired token and with
// ErrInvalidSignature for everything else that does not verify.
func (v *Verifier) Verify(tokenStr string) (Token, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		// Signature is checked before claims, so an expired error implies a
		// valid signature.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Token{}, ErrExpired
		}
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !token.Valid {
		return Token{}, ErrInvalidSignature
	}

	subject := claims.User
	if subject == "" {
		subject = claims.Subject
	}
	if subject == "" {
		return Token{}, fmt.Errorf("%w: token has no subject", ErrInvalidSignature)
	}

	out := Token{Value: tokenStr, Subject: subject, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
