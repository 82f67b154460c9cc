package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/dbtest"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
)

type ledgerFixture struct {
	principals *BunPrincipalRepository
	ledger     *BunCredentialRepository
	principal  *models.Principal
}

func newLedgerFixture(t *testing.T) ledgerFixture {
	t.Helper()
	db := dbtest.NewDB(t)
	f := ledgerFixture{
		principals: NewBunPrincipalRepository(db),
		ledger:     NewBunCredentialRepository(db),
		principal:  newPrincipal("alice@example.com"),
	}
	require.NoError(t, f.principals.Create(context.Background(), f.principal))
	return f
}

func liveKinds(t *testing.T, repo *BunCredentialRepository, principalID string) map[auth.TokenKind]int {
	t.Helper()
	creds, err := repo.ListByPrincipal(context.Background(), principalID)
	require.NoError(t, err)
	out := map[auth.TokenKind]int{}
	for _, c := range creds {
		if c.Live() {
			out[c.Kind]++
		}
	}
	return out
}

func TestBunCredentialRepository_RecordAndFind(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	cred := NewCredential(f.principal.ID, "header.payload.signature", auth.TokenKindAccess)
	require.NoError(t, f.ledger.Record(ctx, cred))

	got, err := f.ledger.FindByToken(ctx, "header.payload.signature")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, got.ID)
	assert.Equal(t, f.principal.ID, got.PrincipalID)
	assert.Equal(t, auth.TokenKindAccess, got.Kind)
	assert.Equal(t, "header.payload.signature", got.Token)
	assert.True(t, got.Live())
	assert.Nil(t, got.RevokedAt)

	_, err = f.ledger.FindByToken(ctx, "unknown.token.value")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBunCredentialRepository_RecordDuplicateToken(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Record(ctx, NewCredential(f.principal.ID, "same", auth.TokenKindAccess)))
	err := f.ledger.Record(ctx, NewCredential(f.principal.ID, "same", auth.TokenKindAccess))
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestBunCredentialRepository_RevokeAllLive(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Record(ctx, NewCredential(f.principal.ID, "a1", auth.TokenKindAccess)))
	require.NoError(t, f.ledger.Record(ctx, NewCredential(f.principal.ID, "a2", auth.TokenKindAccess)))
	require.NoError(t, f.ledger.Record(ctx, NewCredential(f.principal.ID, "r1", auth.TokenKindRefresh)))

	n, err := f.ledger.RevokeAllLive(ctx, f.principal.ID, auth.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[auth.TokenKind]int{auth.TokenKindRefresh: 1}, liveKinds(t, f.ledger, f.principal.ID))

	// Already revoked rows are not counted again.
	n, err = f.ledger.RevokeAllLive(ctx, f.principal.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, liveKinds(t, f.ledger, f.principal.ID))

	a1, err := f.ledger.FindByToken(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, a1.Expired)
	assert.True(t, a1.Revoked)
	assert.NotNil(t, a1.RevokedAt)
}

func TestBunCredentialRepository_RevokeAllLiveNoRecords(t *testing.T) {
	f := newLedgerFixture(t)

	n, err := f.ledger.RevokeAllLive(context.Background(), f.principal.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBunCredentialRepository_MarkRevoked(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	access := NewCredential(f.principal.ID, "a1", auth.TokenKindAccess)
	refresh := NewCredential(f.principal.ID, "r1", auth.TokenKindRefresh)
	require.NoError(t, f.ledger.Record(ctx, access))
	require.NoError(t, f.ledger.Record(ctx, refresh))

	require.NoError(t, f.ledger.MarkRevoked(ctx, access.ID))
	first, err := f.ledger.FindByToken(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, first.RevokedAt)
	assert.False(t, first.Live())

	// Idempotent, and the first revocation time is kept.
	require.NoError(t, f.ledger.MarkRevoked(ctx, access.ID))
	second, err := f.ledger.FindByToken(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, first.RevokedAt.Equal(*second.RevokedAt))

	// Only the marked record changes.
	assert.Equal(t, map[auth.TokenKind]int{auth.TokenKindRefresh: 1}, liveKinds(t, f.ledger, f.principal.ID))

	err = f.ledger.MarkRevoked(ctx, "0190f5d2-0000-7000-8000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBunCredentialRepository_Rotate(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	n, err := f.ledger.Rotate(ctx, f.principal.ID, "", nil,
		NewCredential(f.principal.ID, "a1", auth.TokenKindAccess),
		NewCredential(f.principal.ID, "r1", auth.TokenKindRefresh),
	)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.ledger.Rotate(ctx, f.principal.ID, "", []auth.TokenKind{auth.TokenKindAccess},
		NewCredential(f.principal.ID, "a2", auth.TokenKindAccess),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[auth.TokenKind]int{auth.TokenKindAccess: 1, auth.TokenKindRefresh: 1}, liveKinds(t, f.ledger, f.principal.ID))

	a2, err := f.ledger.FindByToken(ctx, "a2")
	require.NoError(t, err)
	assert.True(t, a2.Live())
}

func TestBunCredentialRepository_RotateRollsBack(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Record(ctx, NewCredential(f.principal.ID, "a1", auth.TokenKindAccess)))

	// The second insert collides with a1, so the revocation must roll back too.
	_, err := f.ledger.Rotate(ctx, f.principal.ID, "", nil,
		NewCredential(f.principal.ID, "a2", auth.TokenKindAccess),
		NewCredential(f.principal.ID, "a1", auth.TokenKindAccess),
	)
	require.ErrorIs(t, err, ErrDuplicate)

	assert.Equal(t, map[auth.TokenKind]int{auth.TokenKindAccess: 1}, liveKinds(t, f.ledger, f.principal.ID))
	_, err = f.ledger.FindByToken(ctx, "a2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBunCredentialRepository_RotateRequiresLive(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	refresh := NewCredential(f.principal.ID, "r1", auth.TokenKindRefresh)
	_, err := f.ledger.Rotate(ctx, f.principal.ID, "", nil,
		NewCredential(f.principal.ID, "a1", auth.TokenKindAccess),
		refresh,
	)
	require.NoError(t, err)

	n, err := f.ledger.Rotate(ctx, f.principal.ID, refresh.ID, []auth.TokenKind{auth.TokenKindAccess},
		NewCredential(f.principal.ID, "a2", auth.TokenKindAccess),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, f.ledger.MarkRevoked(ctx, refresh.ID))

	// Nothing changes once the required credential is gone.
	_, err = f.ledger.Rotate(ctx, f.principal.ID, refresh.ID, []auth.TokenKind{auth.TokenKindAccess},
		NewCredential(f.principal.ID, "a3", auth.TokenKindAccess),
	)
	require.ErrorIs(t, err, ErrRevoked)

	a2, err := f.ledger.FindByToken(ctx, "a2")
	require.NoError(t, err)
	assert.True(t, a2.Live())
	_, err = f.ledger.FindByToken(ctx, "a3")
	require.ErrorIs(t, err, ErrNotFound)

	// The required credential must belong to the rotated principal.
	_, err = f.ledger.Rotate(ctx, "0190f5d2-0000-7000-8000-000000000000", a2.ID, nil)
	require.ErrorIs(t, err, ErrRevoked)
}

func TestBunCredentialRepository_RotateRejectsForeignCredential(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.ledger.Rotate(context.Background(), f.principal.ID, "", nil,
		NewCredential("0190f5d2-0000-7000-8000-000000000000", "a1", auth.TokenKindAccess),
	)
	require.Error(t, err)
}

func TestBunCredentialRepository_ListByPrincipal(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.ledger.Record(ctx, NewCredential(f.principal.ID, fmt.Sprintf("tok-%d", i), auth.TokenKindAccess)))
	}

	creds, err := f.ledger.ListByPrincipal(ctx, f.principal.ID)
	require.NoError(t, err)
	require.Len(t, creds, 3)
	assert.Equal(t, "tok-2", creds[0].Token)

	other, err := f.ledger.ListByPrincipal(ctx, "0190f5d2-0000-7000-8000-000000000000")
	require.NoError(t, err)
	assert.Empty(t, other)
}
