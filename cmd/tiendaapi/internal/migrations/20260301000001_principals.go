package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260301000001, down_20260301000001)
}

// up_20260301000001 creates the principals table
func up_20260301000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating principals table...")
	_, err := db.NewCreateTable().
		Model((*models.Principal)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create principals table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_principals_email ON principals(email)`)
	if err != nil {
		return fmt.Errorf("failed to create principals email index: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20260301000001(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, "principals")
}
