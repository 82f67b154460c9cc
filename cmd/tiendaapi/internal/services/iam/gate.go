package iam

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/telemetry"
)

// GateOutcome is the decision taken for a presented bearer credential.
type GateOutcome int

const (
	// GateAnonymous lets the request continue without establishing an identity.
	GateAnonymous GateOutcome = iota
	// GateRejected stops the request.
	GateRejected
	// GateAuthenticated continues with a security context.
	GateAuthenticated
)

func (o GateOutcome) String() string {
	switch o {
	case GateRejected:
		return "rejected"
	case GateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// GateResult is the result of Authenticate.
type GateResult struct {
	Outcome GateOutcome
	// Reason says why the request did not authenticate.
	Reason string
	// Context is set only when Outcome is GateAuthenticated.
	Context *auth.SecurityContext
}

func anonymous(reason string) GateResult {
	return GateResult{Outcome: GateAnonymous, Reason: reason}
}

func rejected(reason string) GateResult {
	return GateResult{Outcome: GateRejected, Reason: reason}
}

// Authenticate decides whether token establishes an identity for a request.
// Absent or unusable credentials degrade to GateAnonymous; a ledgered access
// credential that fails claim validation is GateRejected. The returned error
// is set only for store failures.
func (s *Service) Authenticate(ctx context.Context, token string) (result GateResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGate, "iam.Authenticate")
	defer func() {
		span.SetAttributes(
			attribute.String(telemetry.AttrGateOutcome, result.Outcome.String()),
			attribute.String(telemetry.AttrGateReason, result.Reason),
		)
		telemetry.RecordError(span, err)
		span.End()
		if err == nil {
			s.metrics.RecordGate(ctx, result.Outcome.String())
		}
	}()

	claims, err := s.codec.Decode(token)
	if err != nil {
		return anonymous("undecodable token"), nil
	}
	if claims.Subject == "" {
		return anonymous("missing subject"), nil
	}
	if _, ok := auth.FromContext(ctx); ok {
		return anonymous("security context already established"), nil
	}

	record, err := s.credentials.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return anonymous("credential not in ledger"), nil
		}
		return GateResult{}, fmt.Errorf("find credential: %w", err)
	}
	if !record.Live() {
		return anonymous("credential revoked or expired"), nil
	}
	if record.Kind != auth.TokenKindAccess {
		return anonymous("not an access credential"), nil
	}

	p, err := s.principals.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return anonymous("principal not found"), nil
		}
		return GateResult{}, fmt.Errorf("get principal: %w", err)
	}

	switch {
	case claims.Subject != p.Email || record.PrincipalID != p.ID:
		return rejected("subject mismatch"), nil
	case claims.Expired(s.codec.Now()):
		return rejected("credential expired"), nil
	case !p.Active():
		return rejected("principal inactive"), nil
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrPrincipalID, p.ID),
		attribute.String(telemetry.AttrCredentialID, record.ID),
	)
	return GateResult{
		Outcome: GateAuthenticated,
		Context: &auth.SecurityContext{
			PrincipalID:  p.ID,
			Identifier:   p.Email,
			Name:         p.Name,
			Roles:        p.RoleSet(),
			CredentialID: record.ID,
		},
	}, nil
}
