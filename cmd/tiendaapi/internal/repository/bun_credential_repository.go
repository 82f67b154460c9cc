package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/bunx"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
)

// BunCredentialRepository implements CredentialRepository using Bun ORM
type BunCredentialRepository struct {
	db  *bun.DB
	now func() time.Time
}

// NewBunCredentialRepository creates a new Bun-based credential ledger
func NewBunCredentialRepository(db *bun.DB) *BunCredentialRepository {
	return &BunCredentialRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// NewCredential builds a live ledger entry for a freshly minted token.
func NewCredential(principalID, token string, kind auth.TokenKind) *models.Credential {
	return &models.Credential{
		ID:          bunx.NewUUIDv7(),
		PrincipalID: principalID,
		Token:       token,
		TokenHash:   auth.HashToken(token),
		Kind:        kind,
	}
}

// Record inserts a live credential
func (r *BunCredentialRepository) Record(ctx context.Context, credential *models.Credential) error {
	return r.insert(ctx, r.db, credential)
}

func (r *BunCredentialRepository) insert(ctx context.Context, db bun.IDB, credential *models.Credential) error {
	if credential.ID == "" {
		credential.ID = bunx.NewUUIDv7()
	}
	if credential.TokenHash == "" {
		credential.TokenHash = auth.HashToken(credential.Token)
	}
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = r.now()
	}
	credential.Expired = false
	credential.Revoked = false
	credential.RevokedAt = nil

	if _, err := db.NewInsert().Model(credential).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("credential: %w", ErrDuplicate)
		}
		return fmt.Errorf("record credential: %w", err)
	}
	return nil
}

// FindByToken retrieves the ledger entry of a token by its hash
func (r *BunCredentialRepository) FindByToken(ctx context.Context, token string) (*models.Credential, error) {
	credential := new(models.Credential)
	err := r.db.NewSelect().
		Model(credential).
		Where("token_hash = ?", auth.HashToken(token)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("find credential by token: %w", err)
	}
	return credential, nil
}

// RevokeAllLive flags every live credential of a principal
func (r *BunCredentialRepository) RevokeAllLive(ctx context.Context, principalID string, kinds ...auth.TokenKind) (int, error) {
	return r.revokeLive(ctx, r.db, principalID, kinds)
}

func (r *BunCredentialRepository) revokeLive(ctx context.Context, db bun.IDB, principalID string, kinds []auth.TokenKind) (int, error) {
	q := db.NewUpdate().
		Model((*models.Credential)(nil)).
		Set("expired = ?", true).
		Set("revoked = ?", true).
		Set("revoked_at = ?", r.now()).
		Where("principal_id = ?", principalID).
		Where("expired = ?", false).
		Where("revoked = ?", false)
	if len(kinds) > 0 {
		q = q.Where("kind IN (?)", bun.In(kinds))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("revoke live credentials: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke live credentials: %w", err)
	}
	return int(n), nil
}

// MarkRevoked flags a single credential. Marking an already revoked
// credential succeeds and keeps the first revoked_at.
func (r *BunCredentialRepository) MarkRevoked(ctx context.Context, id string) error {
	res, err := r.db.NewUpdate().
		Model((*models.Credential)(nil)).
		Set("expired = ?", true).
		Set("revoked = ?", true).
		Set("revoked_at = COALESCE(revoked_at, ?)", r.now()).
		Where("id = ?", id).
		Exec(ctx)
	return checkUpdated(res, err, "credential", id)
}

// Rotate revokes and records inside one transaction. On PostgreSQL the
// principal row is locked first so concurrent rotations for the same
// principal run one after another; SQLite serializes on its single connection.
func (r *BunCredentialRepository) Rotate(ctx context.Context, principalID, requireLive string, revokeKinds []auth.TokenKind, issued ...*models.Credential) (int, error) {
	var revoked int
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		pg := tx.Dialect().Name() == dialect.PG
		if pg {
			var id string
			err := tx.NewSelect().
				Model((*models.Principal)(nil)).
				Column("id").
				Where("id = ?", principalID).
				For("UPDATE").
				Scan(ctx, &id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("principal %s: %w", principalID, ErrNotFound)
				}
				return fmt.Errorf("lock principal: %w", err)
			}
		}

		if requireLive != "" {
			if err := r.checkLive(ctx, tx, principalID, requireLive, pg); err != nil {
				return err
			}
		}

		n, err := r.revokeLive(ctx, tx, principalID, revokeKinds)
		if err != nil {
			return err
		}
		revoked = n

		for _, c := range issued {
			if c.PrincipalID != principalID {
				return fmt.Errorf("credential %s belongs to principal %s, not %s", c.ID, c.PrincipalID, principalID)
			}
			if err := r.insert(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// checkLive re-reads a credential inside the rotation so a revocation
// committed after the caller's own lookup still aborts it. The row stays
// locked on PostgreSQL until the rotation commits.
func (r *BunCredentialRepository) checkLive(ctx context.Context, tx bun.Tx, principalID, id string, lock bool) error {
	q := tx.NewSelect().
		Model((*models.Credential)(nil)).
		Column("id").
		Where("id = ?", id).
		Where("principal_id = ?", principalID).
		Where("expired = ?", false).
		Where("revoked = ?", false)
	if lock {
		q = q.For("UPDATE")
	}

	var found string
	if err := q.Scan(ctx, &found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("credential %s: %w", id, ErrRevoked)
		}
		return fmt.Errorf("check credential %s: %w", id, err)
	}
	return nil
}

// ListByPrincipal returns a principal's ledger, newest first
func (r *BunCredentialRepository) ListByPrincipal(ctx context.Context, principalID string) ([]models.Credential, error) {
	var credentials []models.Credential
	err := r.db.NewSelect().
		Model(&credentials).
		Where("principal_id = ?", principalID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return credentials, nil
}
