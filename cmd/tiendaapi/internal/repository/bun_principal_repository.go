package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/bunx"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
)

// BunPrincipalRepository implements PrincipalRepository using Bun ORM
type BunPrincipalRepository struct {
	db *bun.DB
}

// NewBunPrincipalRepository creates a new Bun-based principal repository
func NewBunPrincipalRepository(db *bun.DB) *BunPrincipalRepository {
	return &BunPrincipalRepository{db: db}
}

// Create inserts a principal, filling in id, default role, status and timestamps.
func (r *BunPrincipalRepository) Create(ctx context.Context, principal *models.Principal) error {
	if principal.ID == "" {
		principal.ID = bunx.NewUUIDv7()
	}
	if len(principal.Roles) == 0 {
		principal.Roles = models.RoleSet{auth.DefaultRole}
	}
	if principal.Status == "" {
		principal.Status = models.PrincipalActive
	}
	now := time.Now().UTC()
	if principal.RegisteredAt.IsZero() {
		principal.RegisteredAt = now
	}
	principal.UpdatedAt = now

	_, err := r.db.NewInsert().Model(principal).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("principal %s: %w", principal.Email, ErrDuplicate)
		}
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

// GetByID retrieves a principal by ID
func (r *BunPrincipalRepository) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	principal := new(models.Principal)
	err := r.db.NewSelect().Model(principal).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("principal %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return principal, nil
}

// GetByEmail retrieves a principal by its login identifier
func (r *BunPrincipalRepository) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	principal := new(models.Principal)
	err := r.db.NewSelect().Model(principal).Where("email = ?", email).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("principal with email %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("get principal by email: %w", err)
	}
	return principal, nil
}

// List returns all principals ordered by registration
func (r *BunPrincipalRepository) List(ctx context.Context) ([]models.Principal, error) {
	var principals []models.Principal
	err := r.db.NewSelect().Model(&principals).Order("registered_at ASC", "email ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	return principals, nil
}

// SetStatus activates or deactivates a principal
func (r *BunPrincipalRepository) SetStatus(ctx context.Context, id string, status models.PrincipalStatus) error {
	res, err := r.db.NewUpdate().
		Model((*models.Principal)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return checkUpdated(res, err, "principal", id)
}

// SetRoles replaces the role set of a principal
func (r *BunPrincipalRepository) SetRoles(ctx context.Context, id string, roles []auth.Role) error {
	if len(roles) == 0 {
		return fmt.Errorf("principal %s: role set must not be empty", id)
	}
	res, err := r.db.NewUpdate().
		Model((*models.Principal)(nil)).
		Set("roles = ?", models.RoleSet(roles)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return checkUpdated(res, err, "principal", id)
}

func checkUpdated(res sql.Result, err error, entity, id string) error {
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}
