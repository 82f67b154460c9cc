package server

import (
	"fmt"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	tiendamiddleware "github.com/tiendafacil/tienda/cmd/tiendaapi/internal/middleware"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/validation"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/telemetry"
)

// RouterOptions controls the construction of the Tienda HTTP router.
// IAMService and Enforcer are required.
type RouterOptions struct {
	IAMService    iamService
	Principals    repository.PrincipalRepository
	Enforcer      casbin.IEnforcer
	Validator     *validation.Validator
	Logger        zerolog.Logger
	Metrics       *telemetry.ServerMetrics
	CORSOptions   *cors.Options
	Skipper       auth.Skipper
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:4200",
			"http://127.0.0.1:4200",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with logging, CORS, the request gate and
// route authorization, then mounts the auth and API handlers.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	if opts.IAMService == nil {
		return nil, fmt.Errorf("router requires the iam service")
	}
	validator := opts.Validator
	if validator == nil {
		var err error
		if validator, err = validation.New(validation.DefaultCacheSize); err != nil {
			return nil, err
		}
	}
	authz, err := tiendamiddleware.NewAuthzMiddleware(opts.Enforcer, opts.Skipper)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tiendamiddleware.RequestLogger(opts.Logger, opts.Metrics)...)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	r.Use(tiendamiddleware.Authn(opts.IAMService, opts.Skipper))
	r.Use(authz)

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", HandleRegister(opts.IAMService, validator))
			r.Post("/login", HandleLogin(opts.IAMService, validator))
			r.Post("/refresh", HandleRefresh(opts.IAMService))
			r.Post("/logout", HandleLogout(opts.IAMService))
		})

		r.Get("/me", HandleMe())
		r.Get("/test", HandleWelcome())
		if opts.Principals != nil {
			r.Get("/clientes", HandleListClientes(opts.Principals))
			r.Get("/clientes/{id}", HandleGetCliente(opts.Principals))
		}
	})

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r, nil
}

// NewH2CHandler wraps the router with an h2c server to allow HTTP/2 over cleartext.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router, err := NewRouter(opts)
	if err != nil {
		return nil, err
	}
	return h2c.NewHandler(router, &http2.Server{}), nil
}
