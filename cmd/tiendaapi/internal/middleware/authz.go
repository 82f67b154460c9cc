package middleware

import (
	"errors"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/rs/zerolog/hlog"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/server/response"
)

// NewAuthzMiddleware enforces route policies from Casbin.
// Every non-exempt route requires an identity; a route named by a policy also
// requires one of the roles granted on it.
func NewAuthzMiddleware(enforcer casbin.IEnforcer, skipper auth.Skipper) (func(http.Handler) http.Handler, error) {
	if enforcer == nil {
		return nil, errors.New("authz middleware requires casbin enforcer")
	}
	if skipper == nil {
		skipper = auth.DefaultSkipper
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipper(r) {
				next.ServeHTTP(w, r)
				return
			}

			sc, ok := auth.FromContext(r.Context())
			if !ok || sc.PrincipalID == "" {
				response.Unauthorized(w)
				return
			}

			path := r.URL.Path
			guarded, err := auth.RouteGuarded(enforcer, path)
			if err != nil {
				response.Error(w, r, err)
				return
			}
			if !guarded {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := auth.Authorize(enforcer, sc, path, r.Method)
			if err != nil {
				response.Error(w, r, err)
				return
			}
			if !allowed {
				hlog.FromRequest(r).Info().
					Str("principal_id", sc.PrincipalID).
					Strs("roles", sc.Authorities()).
					Msg("access denied")
				response.Forbidden(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
