package cmdutil

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/uptrace/bun"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/config"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/bunx"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
)

// Store bundles the DB connection with the repositories and the policy
// enforcer used by administrative commands.
type Store struct {
	DB          *bun.DB
	Principals  *repository.BunPrincipalRepository
	Credentials *repository.BunCredentialRepository
	Enforcer    *casbin.SyncedEnforcer
}

// Close releases the underlying database connection.
func (s *Store) Close() {
	if s == nil || s.DB == nil {
		return
	}
	bunx.Close(s.DB)
}

// OpenStore loads configuration, connects to the database and initializes
// Casbin with auto-save enabled so policy edits are persisted.
func OpenStore() (*Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := bunx.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewStore(db)
}

// NewStore wires a Store around an open connection.
func NewStore(db *bun.DB) (*Store, error) {
	enforcer, err := auth.InitEnforcer(db)
	if err != nil {
		bunx.Close(db)
		return nil, fmt.Errorf("failed to initialize casbin enforcer: %w", err)
	}
	enforcer.EnableAutoSave(true)

	return &Store{
		DB:          db,
		Principals:  repository.NewBunPrincipalRepository(db),
		Credentials: repository.NewBunCredentialRepository(db),
		Enforcer:    enforcer,
	}, nil
}
