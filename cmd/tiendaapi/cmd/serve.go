package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/bunx"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/server"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/iam"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/validation"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Tienda API server",
	Long:  `Starts the HTTP server with the auth endpoints and the authenticated REST API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := cfg.JWT.SigningKey()
		if err != nil {
			return err
		}
		codec, err := auth.NewCodec(key)
		if err != nil {
			return fmt.Errorf("failed to create token codec: %w", err)
		}

		shutdownTelemetry, err := telemetry.Init(cmd.Context(), cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(ctx); err != nil {
				logg.Warn().Err(err).Msg("telemetry shutdown failed")
			}
		}()

		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("failed to create server metrics: %w", err)
		}
		authMetrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("failed to create auth metrics: %w", err)
		}

		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)
		logg.Info().Str("type", string(bunx.DetectDatabaseType(cfg.DatabaseURL))).Msg("connected to database")

		enforcer, err := auth.InitEnforcer(db)
		if err != nil {
			return fmt.Errorf("configure casbin enforcer: %w", err)
		}
		// Policies are managed by the policy command; the server only reads them.
		enforcer.EnableAutoSave(false)

		principalRepo := repository.NewBunPrincipalRepository(db)
		credentialRepo := repository.NewBunCredentialRepository(db)

		validator, err := validation.New(validation.DefaultCacheSize)
		if err != nil {
			return fmt.Errorf("failed to create request validator: %w", err)
		}

		iamService, err := iam.NewService(
			iam.Dependencies{
				Principals:  principalRepo,
				Credentials: credentialRepo,
				Codec:       codec,
				Validator:   validator,
				Logger:      logg,
				Metrics:     authMetrics,
			},
			iam.Config{
				AccessTTL:  cfg.JWT.AccessTTL,
				RefreshTTL: cfg.JWT.RefreshTTL,
			},
		)
		if err != nil {
			return fmt.Errorf("create IAM service: %w", err)
		}

		routerOpts := server.RouterOptions{
			IAMService: iamService,
			Principals: principalRepo,
			Enforcer:   enforcer,
			Validator:  validator,
			Logger:     logg,
			Metrics:    serverMetrics,
		}
		if len(cfg.CORS.AllowedOrigins) > 0 {
			corsOpts := server.DefaultCORSOptions()
			corsOpts.AllowedOrigins = cfg.CORS.AllowedOrigins
			routerOpts.CORSOptions = &corsOpts
		}

		handler, err := server.NewH2CHandler(routerOpts)
		if err != nil {
			return fmt.Errorf("build router: %w", err)
		}

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logg.Info().Str("addr", cfg.ServerAddr).Msg("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// SIGHUP reloads route policies edited with the policy command.
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case sig := <-reload:
				if err := enforcer.LoadPolicy(); err != nil {
					logg.Error().Err(err).Str("signal", sig.String()).Msg("policy reload failed")
					continue
				}
				logg.Info().Str("signal", sig.String()).Msg("route policies reloaded")

			case sig := <-shutdown:
				logg.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := srv.Shutdown(ctx); err != nil {
					srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}

				logg.Info().Msg("server stopped")
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
