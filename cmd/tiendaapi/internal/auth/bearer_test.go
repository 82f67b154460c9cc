package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "surrounding spaces trimmed", header: "Bearer   abc  ", want: "abc"},
		{name: "empty", header: "", wantErr: true},
		{name: "scheme only", header: "Bearer", wantErr: true},
		{name: "scheme and space only", header: "Bearer ", wantErr: true},
		{name: "lowercase scheme", header: "bearer abc", wantErr: true},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "missing prefix", header: "abc.def.ghi", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBearer(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAuthorizationHeader)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashToken(t *testing.T) {
	h := HashToken("token")
	assert.Len(t, base58.Decode(h), 32)
	assert.Equal(t, h, HashToken("token"))
	assert.NotEqual(t, h, HashToken("token2"))
}

func TestDefaultSkipper(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/api/v1/auth/login", true},
		{http.MethodPost, "/api/v1/auth/refresh", true},
		{http.MethodGet, "/health", true},
		{http.MethodGet, "/docs/index.html", true},
		{http.MethodOptions, "/api/v1/clientes", true},
		{http.MethodGet, "/api/v1/clientes", false},
		{http.MethodGet, "/api/v1/me", false},
		{http.MethodGet, "/api/v1/authors", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			assert.Equal(t, tt.want, DefaultSkipper(r))
		})
	}
	assert.False(t, DefaultSkipper(nil))
}

func TestSecurityContext(t *testing.T) {
	ctx := context.Background()
	_, ok := FromContext(ctx)
	assert.False(t, ok)

	roles := []Role{RoleUser}
	ctx = WithSecurityContext(ctx, SecurityContext{PrincipalID: "p-1", Identifier: "a@example.com", Roles: roles})
	roles[0] = RoleAdmin

	sc, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", sc.Identifier)
	assert.True(t, sc.HasRole(RoleUser), "stored roles are copied")
	assert.False(t, sc.HasRole(RoleAdmin))
	assert.Equal(t, []string{"ROLE_USER"}, sc.Authorities())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!pass", hash)

	assert.NoError(t, VerifyPassword(hash, "s3cret!pass"))
	assert.ErrorIs(t, VerifyPassword(hash, "wrong"), ErrPasswordMismatch)
	assert.Error(t, VerifyPassword("not-a-bcrypt-hash", "s3cret!pass"))

	_, err = HashPassword("")
	assert.Error(t, err)
}
