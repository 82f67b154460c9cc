package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/util"
	"github.com/uptrace/bun"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth/bunadapter"
)

//go:embed model.conf
var casbinModelContent string

// AnyAction matches every HTTP method in a route policy.
const AnyAction = "*"

// InitEnforcer creates a Casbin enforcer with the embedded route model and
// policies loaded from casbin_rules.
func InitEnforcer(db *bun.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := bunadapter.NewAdapter(db)
	if err != nil {
		return nil, fmt.Errorf("create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policies: %w", err)
	}
	return enforcer, nil
}

// RouteGuarded reports whether any policy names a pattern matching path.
// Routes without a policy only require authentication.
func RouteGuarded(e casbin.IEnforcer, path string) (bool, error) {
	policies, err := e.GetPolicy()
	if err != nil {
		return false, fmt.Errorf("list casbin policies: %w", err)
	}
	for _, p := range policies {
		if len(p) > 1 && util.KeyMatch2(path, p[1]) {
			return true, nil
		}
	}
	return false, nil
}

// Authorize reports whether any role of sc may perform method on path.
func Authorize(e casbin.IEnforcer, sc SecurityContext, path, method string) (bool, error) {
	for _, authority := range sc.Authorities() {
		ok, err := e.Enforce(authority, path, method)
		if err != nil {
			return false, fmt.Errorf("enforce %s %s for %s: %w", method, path, authority, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
