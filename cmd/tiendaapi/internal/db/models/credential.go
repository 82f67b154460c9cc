package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
)

// Credential is a ledger entry for an issued token.
// Rows are append-only: revocation flips flags, nothing is deleted.
type Credential struct {
	bun.BaseModel `bun:"table:credentials,alias:c"`

	ID          string         `bun:"id,pk,type:uuid"`
	PrincipalID string         `bun:"principal_id,notnull,type:uuid"` // FK to principals(id)
	Token       string         `bun:"token,notnull,type:text"`
	TokenHash   string         `bun:"token_hash,notnull,unique"` // base58 SHA-256 of Token, lookup key
	Kind        auth.TokenKind `bun:"kind,notnull"`
	Expired     bool           `bun:"expired,notnull,default:false"`
	Revoked     bool           `bun:"revoked,notnull,default:false"`
	CreatedAt   time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	RevokedAt   *time.Time     `bun:"revoked_at"`
}

// Live reports whether neither flag is set.
func (c *Credential) Live() bool {
	return !c.Expired && !c.Revoked
}
