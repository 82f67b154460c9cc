package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/validation"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/telemetry"
)

// Tokens is the credential pair returned by register, login and refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterInput carries the profile of a new principal.
type RegisterInput struct {
	Email         string `json:"email" validate:"required,email,max=255"`
	Password      string `json:"password" validate:"required,min=8,max=72"`
	Name          string `json:"name" validate:"required,max=100"`
	MiddleName    string `json:"middle_name" validate:"omitempty,max=100"`
	Surname       string `json:"surname" validate:"required,max=100"`
	SecondSurname string `json:"second_surname" validate:"omitempty,max=100"`
	Phone         string `json:"phone" validate:"omitempty,max=20"`
}

// Dependencies are the collaborators of the service.
type Dependencies struct {
	Principals  repository.PrincipalRepository
	Credentials repository.CredentialRepository
	Codec       *auth.Codec
	Validator   *validation.Validator
	Logger      zerolog.Logger
	Metrics     *telemetry.AuthMetrics // optional
}

// Config holds credential lifetimes.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service is the session manager.
type Service struct {
	principals  repository.PrincipalRepository
	credentials repository.CredentialRepository
	codec       *auth.Codec
	validator   *validation.Validator
	log         zerolog.Logger
	metrics     *telemetry.AuthMetrics
	cfg         Config
}

// NewService validates deps and cfg and returns a ready service.
func NewService(deps Dependencies, cfg Config) (*Service, error) {
	if deps.Principals == nil || deps.Credentials == nil {
		return nil, errors.New("iam: principal and credential repositories are required")
	}
	if deps.Codec == nil {
		return nil, errors.New("iam: codec is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("iam: credential lifetimes must be positive (access %s, refresh %s)", cfg.AccessTTL, cfg.RefreshTTL)
	}

	v := deps.Validator
	if v == nil {
		var err error
		if v, err = validation.New(validation.DefaultCacheSize); err != nil {
			return nil, fmt.Errorf("iam: %w", err)
		}
	}

	return &Service{
		principals:  deps.Principals,
		credentials: deps.Credentials,
		codec:       deps.Codec,
		validator:   v,
		log:         deps.Logger.With().Str("component", "iam").Logger(),
		metrics:     deps.Metrics,
		cfg:         cfg,
	}, nil
}

// CreatePrincipal validates in, hashes the password and stores a principal
// holding roles (the default role when empty). It mints no credentials.
func (s *Service) CreatePrincipal(ctx context.Context, in RegisterInput, roles ...auth.Role) (*models.Principal, error) {
	return CreatePrincipal(ctx, s.principals, s.validator, in, roles...)
}

// CreatePrincipal is the codec-free form of Service.CreatePrincipal used by
// administrative tooling.
func CreatePrincipal(ctx context.Context, principals repository.PrincipalRepository, v *validation.Validator, in RegisterInput, roles ...auth.Role) (*models.Principal, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)

	if msgs := v.Struct(in); len(msgs) > 0 {
		return nil, ValidationError(msgs...)
	}
	for _, r := range roles {
		if !r.Valid() {
			return nil, ValidationError(fmt.Sprintf("roles: unknown role %q", r))
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, Internal(fmt.Errorf("hash password: %w", err))
	}

	p := &models.Principal{
		Email:         in.Email,
		Name:          in.Name,
		MiddleName:    strings.TrimSpace(in.MiddleName),
		Surname:       in.Surname,
		SecondSurname: strings.TrimSpace(in.SecondSurname),
		Phone:         strings.TrimSpace(in.Phone),
		PasswordHash:  hash,
		Roles:         models.RoleSet(roles),
		Status:        models.PrincipalActive,
	}
	if err := principals.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, Conflict(MsgEmailTaken)
		}
		return nil, Internal(err)
	}
	return p, nil
}

// NormalizeEmail lowercases and trims a login identifier.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// mint signs a token of kind for p and wraps it in a ledger entry.
func (s *Service) mint(p *models.Principal, kind auth.TokenKind) (string, *models.Credential, error) {
	ttl := s.cfg.AccessTTL
	if kind == auth.TokenKindRefresh {
		ttl = s.cfg.RefreshTTL
	}
	token, err := s.codec.Mint(p, kind, ttl)
	if err != nil {
		return "", nil, err
	}
	return token, repository.NewCredential(p.ID, token, kind), nil
}

// issuePair mints an access and refresh pair and records both after revoking
// every live credential of p.
func (s *Service) issuePair(ctx context.Context, p *models.Principal, op string) (*Tokens, error) {
	access, accessCred, err := s.mint(p, auth.TokenKindAccess)
	if err != nil {
		return nil, Internal(err)
	}
	refresh, refreshCred, err := s.mint(p, auth.TokenKindRefresh)
	if err != nil {
		return nil, Internal(err)
	}

	revoked, err := s.credentials.Rotate(ctx, p.ID, "", nil, accessCred, refreshCred)
	if err != nil {
		return nil, Internal(fmt.Errorf("rotate credentials: %w", err))
	}
	s.metrics.RecordRevoked(ctx, op, revoked)

	return &Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// observe records the outcome of op for metrics and logs. It returns err unchanged.
func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) error {
	s.metrics.RecordOperation(ctx, op, err == nil, float64(time.Since(start).Microseconds())/1000)

	if e, ok := AsError(err); ok && e.Kind != KindInternal {
		s.log.Debug().Str("op", op).Str("kind", string(e.Kind)).Strs("messages", e.Messages).Msg("request refused")
	} else if err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("operation failed")
	}
	return err
}
