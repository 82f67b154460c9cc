package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/telemetry"
)

// Operation names used for metrics, spans and logs.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpRefresh  = "refresh"
	OpLogout   = "logout"
)

// Register stores a new principal with the default role and opens its first session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *Tokens, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Register",
		attribute.String(telemetry.AttrPrincipalEmail, NormalizeEmail(in.Email)))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	p, err := s.CreatePrincipal(ctx, in)
	if err != nil {
		return nil, s.observe(ctx, OpRegister, start, err)
	}

	tokens, err := s.issuePair(ctx, p, OpRegister)
	if err != nil {
		return nil, s.observe(ctx, OpRegister, start, err)
	}

	s.log.Info().Str("principal_id", p.ID).Str("email", p.Email).Msg("principal registered")
	return tokens, s.observe(ctx, OpRegister, start, nil)
}

// Login checks the password of identifier and replaces every live credential
// of the principal with a new pair.
func (s *Service) Login(ctx context.Context, identifier, secret string) (_ *Tokens, err error) {
	start := time.Now()
	email := NormalizeEmail(identifier)
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Login",
		attribute.String(telemetry.AttrPrincipalEmail, email))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if email == "" || secret == "" {
		return nil, s.observe(ctx, OpLogin, start, ValidationError("email and password are required"))
	}

	p, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.observe(ctx, OpLogin, start, NotFound(MsgEmailNotFound))
		}
		return nil, s.observe(ctx, OpLogin, start, Internal(err))
	}

	if err := auth.VerifyPassword(p.PasswordHash, secret); err != nil {
		return nil, s.observe(ctx, OpLogin, start, Unauthorized(MsgInvalidCredentials))
	}
	if !p.Active() {
		return nil, s.observe(ctx, OpLogin, start, Forbidden(MsgInactive))
	}

	tokens, err := s.issuePair(ctx, p, OpLogin)
	if err != nil {
		return nil, s.observe(ctx, OpLogin, start, err)
	}
	span.SetAttributes(attribute.String(telemetry.AttrPrincipalID, p.ID))
	return tokens, s.observe(ctx, OpLogin, start, nil)
}

// Refresh exchanges a live refresh credential for a new access credential.
// Live access credentials of the principal are revoked; the refresh
// credential is returned unchanged.
func (s *Service) Refresh(ctx context.Context, bearerHeader string) (_ *Tokens, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Refresh")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	token, err := auth.ParseBearer(bearerHeader)
	if err != nil {
		return nil, s.observe(ctx, OpRefresh, start, BadRequest(MsgInvalidHeader))
	}

	claims, err := s.codec.Decode(token)
	if err != nil || claims.Subject == "" {
		return nil, s.observe(ctx, OpRefresh, start, Unauthorized(MsgInvalidToken))
	}

	p, err := s.principals.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.observe(ctx, OpRefresh, start, NotFound(MsgPrincipalNotFound))
		}
		return nil, s.observe(ctx, OpRefresh, start, Internal(err))
	}
	span.SetAttributes(attribute.String(telemetry.AttrPrincipalID, p.ID))

	if claims.Subject != p.Email || claims.Expired(s.codec.Now()) || claims.Kind != auth.TokenKindRefresh {
		return nil, s.observe(ctx, OpRefresh, start, Unauthorized(MsgInvalidToken))
	}

	record, err := s.credentials.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.observe(ctx, OpRefresh, start, BadRequest(MsgTokenNotFound))
		}
		return nil, s.observe(ctx, OpRefresh, start, Internal(err))
	}
	if !record.Live() || record.PrincipalID != p.ID {
		return nil, s.observe(ctx, OpRefresh, start, Unauthorized(MsgTokenRevoked))
	}
	if !p.Active() {
		return nil, s.observe(ctx, OpRefresh, start, Forbidden(MsgInactive))
	}

	access, accessCred, err := s.mint(p, auth.TokenKindAccess)
	if err != nil {
		return nil, s.observe(ctx, OpRefresh, start, Internal(err))
	}
	revoked, err := s.credentials.Rotate(ctx, p.ID, record.ID, []auth.TokenKind{auth.TokenKindAccess}, accessCred)
	if err != nil {
		if errors.Is(err, repository.ErrRevoked) {
			return nil, s.observe(ctx, OpRefresh, start, Unauthorized(MsgTokenRevoked))
		}
		return nil, s.observe(ctx, OpRefresh, start, Internal(fmt.Errorf("rotate access credential: %w", err)))
	}
	s.metrics.RecordRevoked(ctx, OpRefresh, revoked)

	return &Tokens{AccessToken: access, RefreshToken: token}, s.observe(ctx, OpRefresh, start, nil)
}

// Logout revokes the single credential presented in bearerHeader.
// Revoking an already revoked credential succeeds.
func (s *Service) Logout(ctx context.Context, bearerHeader string) (_ string, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Logout")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	token, err := auth.ParseBearer(bearerHeader)
	if err != nil {
		return "", s.observe(ctx, OpLogout, start, BadRequest(MsgInvalidHeader))
	}

	record, err := s.credentials.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", s.observe(ctx, OpLogout, start, BadRequest(MsgTokenNotFound))
		}
		return "", s.observe(ctx, OpLogout, start, Internal(err))
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrCredentialID, record.ID),
		attribute.String(telemetry.AttrCredentialKind, string(record.Kind)),
	)

	wasLive := record.Live()
	if err := s.credentials.MarkRevoked(ctx, record.ID); err != nil {
		return "", s.observe(ctx, OpLogout, start, Internal(err))
	}
	if wasLive {
		s.metrics.RecordRevoked(ctx, OpLogout, 1)
	}

	return MsgLogoutSuccessful, s.observe(ctx, OpLogout, start, nil)
}
