package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/server/response"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/iam"
)

// Authenticator decides what a bearer credential establishes for a request.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (iam.GateResult, error)
}

// Authn is the request gate. It runs once per request:
//  1. Exempt requests (see auth.DefaultSkipper) pass through.
//  2. Requests without a "Bearer" credential pass through.
//  3. The authenticator decides: anonymous requests continue unchanged,
//     rejected requests end with 401, authenticated requests continue with
//     an auth.SecurityContext.
//
// Anonymous requests are turned away later by Authz when the route needs an identity.
func Authn(a Authenticator, skipper auth.Skipper) func(http.Handler) http.Handler {
	if skipper == nil {
		skipper = auth.DefaultSkipper
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipper(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, err := auth.ParseBearer(r.Header.Get("Authorization"))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			result, err := a.Authenticate(r.Context(), token)
			if err != nil {
				response.Error(w, r, err)
				return
			}

			switch result.Outcome {
			case iam.GateAuthenticated:
				ctx := auth.WithSecurityContext(r.Context(), *result.Context)
				hlog.FromRequest(r).Debug().
					Str("principal_id", result.Context.PrincipalID).
					Str("credential_id", result.Context.CredentialID).
					Msg("request authenticated")
				next.ServeHTTP(w, r.WithContext(ctx))
			case iam.GateRejected:
				hlog.FromRequest(r).Info().Str("reason", result.Reason).Msg("credential rejected")
				response.Unauthorized(w)
			default:
				hlog.FromRequest(r).Debug().Str("reason", result.Reason).Msg("continuing unauthenticated")
				next.ServeHTTP(w, r)
			}
		})
	}
}
