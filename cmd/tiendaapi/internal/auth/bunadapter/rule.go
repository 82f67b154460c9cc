package bunadapter

import (
	"strings"

	"github.com/uptrace/bun"
)

var valueColumns = []string{"v0", "v1", "v2", "v3"}

// CasbinRule is one row of casbin_rules. The composite primary key over all
// columns makes inserts idempotent.
type CasbinRule struct {
	bun.BaseModel `bun:"table:casbin_rules,alias:cr"`

	Ptype string `bun:"ptype,pk,type:varchar(100),notnull"` // 'p' (policy) or 'g' (role inheritance)
	V0    string `bun:"v0,pk,type:varchar(255),notnull"`    // subject (ROLE_*)
	V1    string `bun:"v1,pk,type:varchar(255),notnull"`    // route pattern or parent role
	V2    string `bun:"v2,pk,type:varchar(255),notnull"`    // HTTP method or *
	V3    string `bun:"v3,pk,type:varchar(255),notnull"`
}

// NewCasbinRule builds a row from a casbin rule slice.
func NewCasbinRule(ptype string, rule []string) *CasbinRule {
	r := &CasbinRule{Ptype: ptype}
	fields := []*string{&r.V0, &r.V1, &r.V2, &r.V3}
	for i := 0; i < len(rule) && i < len(fields); i++ {
		*fields[i] = rule[i]
	}
	return r
}

// Values returns the rule fields up to the last non-empty one.
func (r *CasbinRule) Values() []string {
	values := []string{r.V0, r.V1, r.V2, r.V3}
	last := -1
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != "" {
			last = i
			break
		}
	}
	return values[:last+1]
}

func (r *CasbinRule) String() string {
	return strings.Join(append([]string{r.Ptype}, r.Values()...), ", ")
}
