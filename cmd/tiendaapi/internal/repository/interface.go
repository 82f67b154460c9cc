package repository

import (
	"context"
	"errors"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("already exists")
	// ErrRevoked is returned by Rotate when the credential it must see live
	// has been revoked or expired.
	ErrRevoked = errors.New("credential no longer live")
)

// PrincipalRepository exposes the principal store.
type PrincipalRepository interface {
	Create(ctx context.Context, principal *models.Principal) error
	GetByID(ctx context.Context, id string) (*models.Principal, error)
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)
	List(ctx context.Context) ([]models.Principal, error)
	SetStatus(ctx context.Context, id string, status models.PrincipalStatus) error
	SetRoles(ctx context.Context, id string, roles []auth.Role) error
}

// CredentialRepository is the credential ledger.
type CredentialRepository interface {
	// Record inserts a live credential.
	Record(ctx context.Context, credential *models.Credential) error
	// FindByToken returns the record of the exact token string.
	FindByToken(ctx context.Context, token string) (*models.Credential, error)
	// RevokeAllLive flags every live credential of the principal, limited to
	// kinds when given, and returns how many rows changed.
	RevokeAllLive(ctx context.Context, principalID string, kinds ...auth.TokenKind) (int, error)
	// MarkRevoked flags a single credential.
	MarkRevoked(ctx context.Context, id string) error
	// Rotate revokes live credentials of revokeKinds and records issued in one
	// transaction. No reader observes both the old and the new credentials live.
	// When requireLive is set, that credential must still be live inside the
	// transaction or nothing changes and ErrRevoked is returned.
	Rotate(ctx context.Context, principalID, requireLive string, revokeKinds []auth.TokenKind, issued ...*models.Credential) (int, error)
	// ListByPrincipal returns the principal's ledger, newest first.
	ListByPrincipal(ctx context.Context, principalID string) ([]models.Credential, error)
}
