package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
)

// PrincipalStatus tells whether a principal may authenticate.
type PrincipalStatus string

const (
	PrincipalActive   PrincipalStatus = "active"
	PrincipalInactive PrincipalStatus = "inactive"
)

// Principal is an account holder able to log in (a store customer or an administrator).
// The email is the login identifier; PasswordHash stores the bcrypt hash.
type Principal struct {
	bun.BaseModel `bun:"table:principals,alias:p"`

	ID            string          `bun:"id,pk,type:uuid"`
	Email         string          `bun:"email,notnull,unique"`
	Name          string          `bun:"name,notnull"`
	MiddleName    string          `bun:"middle_name"`
	Surname       string          `bun:"surname,notnull"`
	SecondSurname string          `bun:"second_surname"`
	Phone         string          `bun:"phone"`
	PasswordHash  string          `bun:"password_hash,notnull"`
	Roles         RoleSet         `bun:"roles,type:jsonb,notnull"`
	Status        PrincipalStatus `bun:"status,notnull,default:'active'"`
	RegisteredAt  time.Time       `bun:"registered_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}

// Identifier implements auth.Subject.
func (p *Principal) Identifier() string { return p.Email }

// InternalID implements auth.Subject.
func (p *Principal) InternalID() string { return p.ID }

// DisplayName implements auth.Subject.
func (p *Principal) DisplayName() string { return p.Name }

// RoleSet implements auth.Subject.
func (p *Principal) RoleSet() []auth.Role { return []auth.Role(p.Roles) }

// Active reports whether the principal may authenticate.
func (p *Principal) Active() bool {
	return p.Status == "" || p.Status == PrincipalActive
}

// RoleSet is a principal's roles stored as a JSON array.
type RoleSet []auth.Role

// Scan implements sql.Scanner for reading from database
func (rs *RoleSet) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*rs = RoleSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan RoleSet: unexpected type %T", value)
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return fmt.Errorf("failed to scan RoleSet: %w", err)
	}
	roles, err := auth.ParseRoles(names)
	if err != nil {
		return fmt.Errorf("failed to scan RoleSet: %w", err)
	}
	*rs = roles
	return nil
}

// Value implements driver.Valuer for writing to database
func (rs RoleSet) Value() (driver.Value, error) {
	if rs == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]auth.Role(rs))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
