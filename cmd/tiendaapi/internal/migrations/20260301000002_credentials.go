package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260301000002, down_20260301000002)
}

// up_20260301000002 creates the credential ledger
func up_20260301000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating credentials table...")
	_, err := db.NewCreateTable().
		Model((*models.Credential)(nil)).
		IfNotExists().
		ForeignKey(`("principal_id") REFERENCES "principals" ("id")`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_credentials_token_hash ON credentials(token_hash)`,
		// revoke-all scans live rows of one principal
		`CREATE INDEX IF NOT EXISTS idx_credentials_principal_live ON credentials(principal_id, revoked, expired)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create credentials index: %w", err)
		}
	}
	fmt.Println(" OK")
	return nil
}

func down_20260301000002(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, "credentials")
}
