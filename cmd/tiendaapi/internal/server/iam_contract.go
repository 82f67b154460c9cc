package server

import (
	"context"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/middleware"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/iam"
)

// iamService is the part of *iam.Service the HTTP layer uses.
type iamService interface {
	middleware.Authenticator
	Register(ctx context.Context, in iam.RegisterInput) (*iam.Tokens, error)
	Login(ctx context.Context, identifier, secret string) (*iam.Tokens, error)
	Refresh(ctx context.Context, bearerHeader string) (*iam.Tokens, error)
	Logout(ctx context.Context, bearerHeader string) (string, error)
}

var _ iamService = (*iam.Service)(nil)
