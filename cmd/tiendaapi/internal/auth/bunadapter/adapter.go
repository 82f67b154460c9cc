package bunadapter

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2/model"
	"github.com/uptrace/bun"
)

// Route policies live in casbin_rules, one row per rule:
//
//	p, ROLE_ADMIN, /api/v1/clientes/*, *
//	g, ROLE_ADMIN, ROLE_USER
//
// Rows are written by migrations and by the policy CLI; the server only reads.

// Adapter stores casbin rules through an existing *bun.DB.
type Adapter struct {
	db *bun.DB
}

// NewAdapter creates an Adapter. The casbin_rules table must already exist.
func NewAdapter(db *bun.DB) (*Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("bun adapter requires a database")
	}
	return &Adapter{db: db}, nil
}

// LoadPolicy loads every rule into the model.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []*CasbinRule
	if err := a.db.NewSelect().Model(&rules).Order("ptype", "v0", "v1", "v2").Scan(context.Background()); err != nil {
		return fmt.Errorf("load casbin rules: %w", err)
	}
	for _, r := range rules {
		values := r.Values()
		if len(values) == 0 || r.Ptype == "" {
			continue
		}
		if err := m.AddPolicy(r.Ptype[:1], r.Ptype, values); err != nil {
			return fmt.Errorf("load casbin rule %s: %w", r, err)
		}
	}
	return nil
}

// SavePolicy replaces every stored rule with the rules of the model.
func (a *Adapter) SavePolicy(m model.Model) error {
	var rules []*CasbinRule
	for _, sec := range []string{"p", "g"} {
		for ptype, assertion := range m[sec] {
			for _, rule := range assertion.Policy {
				rules = append(rules, NewCasbinRule(ptype, rule))
			}
		}
	}

	return a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*CasbinRule)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear casbin rules: %w", err)
		}
		return insertRules(ctx, tx, rules...)
	})
}

// AddPolicy stores a single rule.
func (a *Adapter) AddPolicy(_ string, ptype string, rule []string) error {
	return insertRules(context.Background(), a.db, NewCasbinRule(ptype, rule))
}

// RemovePolicy deletes a single rule.
func (a *Adapter) RemovePolicy(_ string, ptype string, rule []string) error {
	r := NewCasbinRule(ptype, rule)
	_, err := a.db.NewDelete().
		Model((*CasbinRule)(nil)).
		Where("ptype = ?", r.Ptype).
		Where("v0 = ?", r.V0).
		Where("v1 = ?", r.V1).
		Where("v2 = ?", r.V2).
		Where("v3 = ?", r.V3).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("remove casbin rule %s: %w", r, err)
	}
	return nil
}

// RemoveFilteredPolicy deletes rules whose fields, starting at fieldIndex,
// equal the non-empty fieldValues.
func (a *Adapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	q := a.db.NewDelete().Model((*CasbinRule)(nil)).Where("ptype = ?", ptype)
	for i, v := range fieldValues {
		col := fieldIndex + i
		if v == "" {
			continue
		}
		if col < 0 || col >= len(valueColumns) {
			return fmt.Errorf("filter field index %d out of range", col)
		}
		q = q.Where("? = ?", bun.Ident(valueColumns[col]), v)
	}
	if _, err := q.Exec(context.Background()); err != nil {
		return fmt.Errorf("remove filtered casbin rules: %w", err)
	}
	return nil
}

func insertRules(ctx context.Context, db bun.IDB, rules ...*CasbinRule) error {
	for _, r := range rules {
		if _, err := db.NewInsert().Model(r).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("insert casbin rule %s: %w", r, err)
		}
	}
	return nil
}
