package migrations

import (
	"context"
	"fmt"
	"net/http"

	"github.com/uptrace/bun"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth/bunadapter"
)

func init() {
	Migrations.MustRegister(up_20260301000003, down_20260301000003)
}

// DefaultRoutePolicies are the role requirements seeded with the schema.
// Routes not listed here only require an authenticated caller.
var DefaultRoutePolicies = [][]string{
	{auth.RoleUser.Authority(), "/api/v1/test", http.MethodGet},
	{auth.RoleAdmin.Authority(), "/api/v1/clientes", auth.AnyAction},
	{auth.RoleAdmin.Authority(), "/api/v1/clientes/*", auth.AnyAction},
}

// up_20260301000003 creates casbin_rules and seeds the default route policies
func up_20260301000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating casbin_rules table...")
	_, err := db.NewCreateTable().
		Model((*bunadapter.CasbinRule)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create casbin_rules table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] seeding default route policies...")
	for _, rule := range DefaultRoutePolicies {
		_, err := db.NewInsert().
			Model(bunadapter.NewCasbinRule("p", rule)).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed policy %v: %w", rule, err)
		}
	}
	fmt.Println(" OK")
	return nil
}

func down_20260301000003(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, "casbin_rules")
}
