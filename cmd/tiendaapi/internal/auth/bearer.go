package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// BearerPrefix is the Authorization scheme prefix for credentials.
const BearerPrefix = "Bearer "

// ErrInvalidAuthorizationHeader is returned when a header does not carry
// "Bearer <token>".
var ErrInvalidAuthorizationHeader = errors.New("invalid authorization header format")

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", ErrInvalidAuthorizationHeader
	}
	token := strings.TrimSpace(header[len(BearerPrefix):])
	if token == "" {
		return "", ErrInvalidAuthorizationHeader
	}
	return token, nil
}

// HashToken returns the base58 encoded SHA-256 digest of a token.
// Ledger lookups are keyed by this hash.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base58.Encode(sum[:])
}

// Skipper reports whether a request bypasses credential checks.
type Skipper func(*http.Request) bool

// PublicPathPrefixes are open to anonymous callers.
var PublicPathPrefixes = []string{
	"/api/v1/auth/",
	"/docs/",
	"/health",
}

// DefaultSkipper exempts CORS preflight requests and PublicPathPrefixes.
func DefaultSkipper(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.Method == http.MethodOptions {
		return true
	}
	for _, prefix := range PublicPathPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}
