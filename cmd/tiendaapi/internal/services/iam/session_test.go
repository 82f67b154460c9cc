package iam

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
)

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(Dependencies{}, Config{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.Error(t, err)

	f := newFixture(t)
	_, err = NewService(Dependencies{
		Principals:  f.principals,
		Credentials: f.credentials,
		Codec:       f.codec,
	}, Config{})
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokens := f.register(t)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	assert.NotEqual(t, tokens.AccessToken, tokens.RefreshToken)

	p, err := f.principals.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, []auth.Role{auth.RoleUser}, p.RoleSet())
	assert.NotEqual(t, alicePassword, p.PasswordHash)
	require.NoError(t, auth.VerifyPassword(p.PasswordHash, alicePassword))

	claims, err := f.codec.Decode(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, []string{"ROLE_USER"}, claims.Roles)
	assert.Equal(t, auth.TokenKindAccess, claims.Kind)

	for token, kind := range map[string]auth.TokenKind{
		tokens.AccessToken:  auth.TokenKindAccess,
		tokens.RefreshToken: auth.TokenKindRefresh,
	} {
		rec, err := f.credentials.FindByToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, kind, rec.Kind)
		assert.True(t, rec.Live())
		assert.Equal(t, p.ID, rec.PrincipalID)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	in := aliceInput()
	in.Email = "ALICE@example.com"
	_, err := f.svc.Register(context.Background(), in)
	e := requireKind(t, err, KindConflict, http.StatusConflict)
	assert.Equal(t, []string{MsgEmailTaken}, e.Messages)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "short"})
	e := requireKind(t, err, KindValidation, http.StatusBadRequest)
	assert.ElementsMatch(t, []string{
		"email: must be a valid email address",
		"password: must be at least 8 characters long",
		"name: is required",
		"surname: is required",
	}, e.Messages)

	_, err = f.principals.GetByEmail(context.Background(), "not-an-email")
	require.Error(t, err)
}

func TestCreatePrincipal_Roles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePrincipal(ctx, aliceInput(), auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSet{auth.RoleAdmin}, p.Roles)

	creds, err := f.credentials.ListByPrincipal(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, creds)

	in := aliceInput()
	in.Email = "bob@example.com"
	_, err = f.svc.CreatePrincipal(ctx, in, auth.Role("ROOT"))
	requireKind(t, err, KindValidation, http.StatusBadRequest)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "nobody@example.com", alicePassword)
	e := requireKind(t, err, KindNotFound, http.StatusNotFound)
	assert.Equal(t, []string{MsgEmailNotFound}, e.Messages)

	_, err = f.svc.Login(ctx, "alice@example.com", "wrong-password")
	requireKind(t, err, KindUnauthorized, http.StatusUnauthorized)

	_, err = f.svc.Login(ctx, "", "")
	requireKind(t, err, KindValidation, http.StatusBadRequest)

	p, err := f.principals.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, f.principals.SetStatus(ctx, p.ID, models.PrincipalInactive))

	_, err = f.svc.Login(ctx, "alice@example.com", alicePassword)
	requireKind(t, err, KindForbidden, http.StatusForbidden)
}

func TestLogin_IdentifierIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	tokens, err := f.svc.Login(context.Background(), "  ALICE@example.COM ", alicePassword)
	require.NoError(t, err)
	assert.Equal(t, GateAuthenticated, f.gate(t, tokens.AccessToken).Outcome)
}

func TestLogin_RevokesPreviousSession(t *testing.T) {
	f := newFixture(t)
	first := f.register(t)
	ctx := context.Background()

	second, err := f.svc.Login(ctx, "alice@example.com", alicePassword)
	require.NoError(t, err)

	assert.Equal(t, GateAnonymous, f.gate(t, first.AccessToken).Outcome)
	assert.Equal(t, GateAuthenticated, f.gate(t, second.AccessToken).Outcome)

	// The old refresh credential went with the old session.
	_, err = f.svc.Refresh(ctx, bearer(first.RefreshToken))
	requireKind(t, err, KindUnauthorized, http.StatusUnauthorized)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	first := f.register(t)
	ctx := context.Background()

	refreshed, err := f.svc.Refresh(ctx, bearer(first.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, first.RefreshToken, refreshed.RefreshToken)
	assert.NotEqual(t, first.AccessToken, refreshed.AccessToken)

	assert.Equal(t, GateAnonymous, f.gate(t, first.AccessToken).Outcome)
	assert.Equal(t, GateAuthenticated, f.gate(t, refreshed.AccessToken).Outcome)

	// The refresh credential stays usable.
	again, err := f.svc.Refresh(ctx, bearer(first.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, GateAnonymous, f.gate(t, refreshed.AccessToken).Outcome)
	assert.Equal(t, GateAuthenticated, f.gate(t, again.AccessToken).Outcome)
}

func TestRefresh_Failures(t *testing.T) {
	f := newFixture(t)
	tokens := f.register(t)
	ctx := context.Background()

	t.Run("bad header", func(t *testing.T) {
		for _, header := range []string{"", "Bearer", "Bearer ", tokens.RefreshToken, "Token " + tokens.RefreshToken} {
			_, err := f.svc.Refresh(ctx, header)
			requireKind(t, err, KindBadRequest, http.StatusBadRequest)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, bearer("not.a.jwt"))
		requireKind(t, err, KindUnauthorized, http.StatusUnauthorized)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"typ": "refresh"}).SignedString(testKey)
		require.NoError(t, err)

		_, err = f.svc.Refresh(ctx, bearer(token))
		e := requireKind(t, err, KindUnauthorized, http.StatusUnauthorized)
		assert.Equal(t, []string{MsgInvalidToken}, e.Messages)
	})

	t.Run("access token", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, bearer(tokens.AccessToken))
		requireKind(t, err, KindUnauthorized, http.StatusUnauthorized)
	})

	t.Run("unknown to ledger", func(t *testing.T) {
		p, err := f.principals.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		unledgered, err := f.codec.Mint(p, auth.TokenKindRefresh, time.Hour)
		require.NoError(t, err)

		_, err = f.svc.Refresh(ctx, bearer(unledgered))
		e := requireKind(t, err, KindBadRequest, http.StatusBadRequest)
		assert.Equal(t, []string{MsgTokenNotFound}, e.Messages)
	})

	t.Run("principal gone", func(t *testing.T) {
		ghost := &models.Principal{ID: "0190f5d2-0000-7000-8000-000000000000", Email: "ghost@example.com", Roles: models.RoleSet{auth.RoleUser}}
		token, err := f.codec.Mint(ghost, auth.TokenKindRefresh, time.Hour)
		require.NoError(t, err)

		_, err = f.svc.Refresh(ctx, bearer(token))
		requireKind(t, err, KindNotFound, http.StatusNotFound)
	})
}

func TestRefresh_Expired(t *testing.T) {
	f := newFixture(t)
	tokens := f.register(t)

	f.clock.Advance(testRefreshTTL)

	_, err := f.svc.Refresh(context.Background(), bearer(tokens.RefreshToken))
	requireKind(t, err, KindUnauthorized, http.StatusUnauthorized)
}

func TestRefresh_Revoked(t *testing.T) {
	f := newFixture(t)
	tokens := f.register(t)
	ctx := context.Background()

	_, err := f.svc.Logout(ctx, bearer(tokens.RefreshToken))
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, bearer(tokens.RefreshToken))
	e := requireKind(t, err, KindUnauthorized, http.StatusUnauthorized)
	assert.Equal(t, []string{MsgTokenRevoked}, e.Messages)
}

func TestRefresh_LoginBetweenLookupAndRotate(t *testing.T) {
	f := newFixture(t)
	first := f.register(t)
	ctx := context.Background()

	var login *Tokens
	f.svc.credentials = &interleavedLedger{
		CredentialRepository: f.credentials,
		after: func() {
			var err error
			login, err = f.svc.Login(ctx, "alice@example.com", alicePassword)
			require.NoError(t, err)
		},
	}

	_, err := f.svc.Refresh(ctx, bearer(first.RefreshToken))
	e := requireKind(t, err, KindUnauthorized, http.StatusUnauthorized)
	assert.Equal(t, []string{MsgTokenRevoked}, e.Messages)
	require.NotNil(t, login)

	rec, err := f.credentials.FindByToken(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.False(t, rec.Live())

	// The login's session is untouched and no extra access credential exists.
	assert.Equal(t, GateAuthenticated, f.gate(t, login.AccessToken).Outcome)
	p, err := f.principals.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	creds, err := f.credentials.ListByPrincipal(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 4)
	live := 0
	for _, c := range creds {
		if c.Live() {
			live++
		}
	}
	assert.Equal(t, 2, live)
}

func TestRefresh_LogoutBetweenLookupAndRotate(t *testing.T) {
	f := newFixture(t)
	first := f.register(t)
	ctx := context.Background()

	f.svc.credentials = &interleavedLedger{
		CredentialRepository: f.credentials,
		after: func() {
			rec, err := f.credentials.FindByToken(ctx, first.RefreshToken)
			require.NoError(t, err)
			require.NoError(t, f.credentials.MarkRevoked(ctx, rec.ID))
		},
	}

	_, err := f.svc.Refresh(ctx, bearer(first.RefreshToken))
	requireKind(t, err, KindUnauthorized, http.StatusUnauthorized)

	// The original access credential was not rotated away.
	assert.Equal(t, GateAuthenticated, f.gate(t, first.AccessToken).Outcome)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	tokens := f.register(t)
	ctx := context.Background()

	msg, err := f.svc.Logout(ctx, bearer(tokens.AccessToken))
	require.NoError(t, err)
	assert.Equal(t, MsgLogoutSuccessful, msg)
	assert.Equal(t, GateAnonymous, f.gate(t, tokens.AccessToken).Outcome)

	// Already revoked: still a success.
	msg, err = f.svc.Logout(ctx, bearer(tokens.AccessToken))
	require.NoError(t, err)
	assert.Equal(t, MsgLogoutSuccessful, msg)

	// Only the presented credential is revoked.
	rec, err := f.credentials.FindByToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.True(t, rec.Live())
}

func TestLogout_Failures(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	ctx := context.Background()

	_, err := f.svc.Logout(ctx, "Bearer")
	requireKind(t, err, KindBadRequest, http.StatusBadRequest)

	_, err = f.svc.Logout(ctx, "")
	requireKind(t, err, KindBadRequest, http.StatusBadRequest)

	_, err = f.svc.Logout(ctx, bearer("never.issued.token"))
	e := requireKind(t, err, KindBadRequest, http.StatusBadRequest)
	assert.Equal(t, []string{MsgTokenNotFound}, e.Messages)
}
