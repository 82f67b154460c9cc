package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformedToken is returned when a token cannot be parsed.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidSignature is returned when a token was not signed with our key.
	ErrInvalidSignature = errors.New("invalid token signature")
)

// TokenKind distinguishes access credentials from refresh credentials.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Valid reports whether k is a known kind.
func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// Subject is the identity a credential is minted for.
type Subject interface {
	// Identifier is the stable login identifier (the email address).
	Identifier() string
	// InternalID is the database id of the principal.
	InternalID() string
	DisplayName() string
	RoleSet() []Role
}

// Claims is the decoded content of a credential.
type Claims struct {
	PrincipalID string    `json:"id,omitempty"`
	Name        string    `json:"name,omitempty"`
	Roles       []string  `json:"roles"`
	Kind        TokenKind `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// Identifier returns the sub claim.
func (c *Claims) Identifier() string {
	return c.Subject
}

// Expired reports whether the exp claim has elapsed at now.
// A credential without exp is treated as expired.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !now.Before(c.ExpiresAt.Time)
}

// RoleSet converts the roles claim back to typed roles, skipping unknown ones.
func (c *Claims) RoleSet() []Role {
	roles := make([]Role, 0, len(c.Roles))
	for _, a := range c.Roles {
		if r, err := ParseRole(a); err == nil {
			roles = append(roles, r)
		}
	}
	return roles
}

// Codec mints and decodes HS256 credentials with a single process-wide key.
// It is safe for concurrent use.
type Codec struct {
	key    []byte
	now    func() time.Time
	newJTI func() string
	parser *jwt.Parser
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for iat and exp.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides the jti generator.
func WithIDGenerator(gen func() string) CodecOption {
	return func(c *Codec) {
		if gen != nil {
			c.newJTI = gen
		}
	}
}

// NewCodec returns a Codec signing with key.
func NewCodec(key []byte, opts ...CodecOption) (*Codec, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is required")
	}
	c := &Codec{
		key:    append([]byte(nil), key...),
		now:    time.Now,
		newJTI: func() string { return uuid.Must(uuid.NewV7()).String() },
		// Expiry is a claim the caller inspects, so registered-claim validation is off.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Now returns the codec's current time.
func (c *Codec) Now() time.Time {
	return c.now()
}

// Mint issues a signed credential of the given kind for s.
func (c *Codec) Mint(s Subject, kind TokenKind, lifetime time.Duration) (string, error) {
	if s == nil || s.Identifier() == "" {
		return "", errors.New("mint: subject identifier is required")
	}
	if lifetime <= 0 {
		return "", fmt.Errorf("mint: lifetime must be positive, got %s", lifetime)
	}
	if !kind.Valid() {
		return "", fmt.Errorf("mint: unknown token kind %q", kind)
	}

	issuedAt := c.now().Truncate(time.Second)
	claims := Claims{
		PrincipalID: s.InternalID(),
		Name:        s.DisplayName(),
		Roles:       Authorities(s.RoleSet()),
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.newJTI(),
			Subject:   s.Identifier(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and structure of token and returns its claims.
// It does not reject expired credentials; see Claims.Expired.
func (c *Codec) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}
