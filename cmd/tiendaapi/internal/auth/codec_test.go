package auth

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeSubject struct {
	id, email, name string
	roles           []Role
}

func (s fakeSubject) Identifier() string  { return s.email }
func (s fakeSubject) InternalID() string  { return s.id }
func (s fakeSubject) DisplayName() string { return s.name }
func (s fakeSubject) RoleSet() []Role     { return s.roles }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("jti-%d", n)
	}
}

func TestCodec_MintDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec, err := NewCodec(testKey, WithClock(fixedClock(now)))
	require.NoError(t, err)

	subjects := []fakeSubject{
		{id: "p-1", email: "alice@example.com", name: "Alice", roles: []Role{RoleUser}},
		{id: "p-2", email: "bob@example.com", name: "Bob", roles: []Role{RoleUser, RoleAdmin}},
		{id: "p-3", email: "carol+tag@example.com", roles: []Role{RoleAdmin}},
	}
	lifetimes := []time.Duration{time.Second, 15 * time.Minute, 24 * time.Hour}

	for _, s := range subjects {
		for _, lifetime := range lifetimes {
			token, err := codec.Mint(s, TokenKindAccess, lifetime)
			require.NoError(t, err)

			claims, err := codec.Decode(token)
			require.NoError(t, err)
			assert.Equal(t, s.email, claims.Subject)
			assert.Equal(t, s.id, claims.PrincipalID)
			assert.Equal(t, s.name, claims.Name)
			assert.Equal(t, TokenKindAccess, claims.Kind)
			assert.Equal(t, Authorities(s.roles), claims.Roles)
			assert.Equal(t, s.roles, claims.RoleSet())
			assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
			assert.Equal(t, now.Add(lifetime).Unix(), claims.ExpiresAt.Unix())
			assert.NotEmpty(t, claims.ID)
		}
	}
}

func TestCodec_RolesSerializedWithPrefix(t *testing.T) {
	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	token, err := codec.Mint(fakeSubject{email: "a@example.com", roles: []Role{RoleUser, RoleAdmin}}, TokenKindRefresh, time.Hour)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, claims.Roles)
	assert.Equal(t, TokenKindRefresh, claims.Kind)
}

func TestCodec_DeterministicWithFixedHooks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fakeSubject{id: "p-1", email: "alice@example.com", roles: []Role{RoleUser}}

	mint := func() string {
		codec, err := NewCodec(testKey, WithClock(fixedClock(now)), WithIDGenerator(func() string { return "fixed" }))
		require.NoError(t, err)
		token, err := codec.Mint(s, TokenKindAccess, time.Hour)
		require.NoError(t, err)
		return token
	}
	assert.Equal(t, mint(), mint())

	codec, err := NewCodec(testKey, WithClock(fixedClock(now)), WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	a, err := codec.Mint(s, TokenKindAccess, time.Hour)
	require.NoError(t, err)
	b, err := codec.Mint(s, TokenKindAccess, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "distinct jti must yield distinct tokens within the same second")
}

func TestCodec_DecodeDoesNotRejectExpired(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	codec, err := NewCodec(testKey, WithClock(fixedClock(past)))
	require.NoError(t, err)

	token, err := codec.Mint(fakeSubject{email: "old@example.com"}, TokenKindAccess, time.Hour)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.True(t, claims.Expired(time.Now()))
	assert.False(t, claims.Expired(past.Add(30*time.Minute)))
	assert.True(t, claims.Expired(past.Add(time.Hour)), "expiry instant itself is expired")
}

func TestCodec_DecodeFailures(t *testing.T) {
	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	other, err := NewCodec([]byte(strings.Repeat("x", 32)))
	require.NoError(t, err)
	foreign, err := other.Mint(fakeSubject{email: "a@example.com"}, TokenKindAccess, time.Hour)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "a@example.com"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "garbage", token: "not-a-token", want: ErrMalformedToken},
		{name: "empty", token: "", want: ErrMalformedToken},
		{name: "wrong key", token: foreign, want: ErrInvalidSignature},
		{name: "alg none", token: noneToken, want: ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// A signed token without sub decodes; callers reject the empty subject.
func TestCodec_DecodeMissingSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"roles": []string{"ROLE_USER"}}).SignedString(testKey)
	require.NoError(t, err)

	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Empty(t, claims.Subject)
	assert.Equal(t, []string{"ROLE_USER"}, claims.Roles)
}

func TestCodec_MintValidation(t *testing.T) {
	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	_, err = codec.Mint(fakeSubject{}, TokenKindAccess, time.Hour)
	assert.Error(t, err)

	_, err = codec.Mint(fakeSubject{email: "a@example.com"}, TokenKindAccess, 0)
	assert.Error(t, err)

	_, err = codec.Mint(fakeSubject{email: "a@example.com"}, TokenKind("session"), time.Hour)
	assert.Error(t, err)

	_, err = NewCodec(nil)
	assert.Error(t, err)
}
