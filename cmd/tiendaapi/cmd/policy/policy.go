package policy

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/casbin/casbin/v2"
	"github.com/spf13/cobra"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/cmd/cmdutil"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
)

var methodFlag string

// PolicyCmd is the parent command for route policy management
var PolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage route role requirements",
	Long: `Commands for listing and editing the role required by each API route.
Routes without a policy only require an authenticated caller. A running
server picks up changes on SIGHUP.`,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List route policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		defer store.Close()

		return writePolicies(cmd.OutOrStdout(), store.Enforcer)
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant <role> <path>",
	Short: "Require a role for a route pattern",
	Example: `  tiendaapi policy grant ADMIN '/api/v1/clientes/*'
  tiendaapi policy grant USER /api/v1/test --method GET`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		defer store.Close()

		added, err := grant(store.Enforcer, args[0], args[1], methodFlag)
		if err != nil {
			return err
		}
		if !added {
			fmt.Fprintln(cmd.OutOrStdout(), "Policy already present")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Policy added")
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <role> <path>",
	Short: "Remove a role requirement from a route pattern",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := revoke(store.Enforcer, args[0], args[1], methodFlag)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no policy %s %s %s", args[0], args[1], normalizeMethod(methodFlag))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Policy removed")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{grantCmd, revokeCmd} {
		c.Flags().StringVar(&methodFlag, "method", auth.AnyAction, "HTTP method the policy applies to (* for any)")
	}
	PolicyCmd.AddCommand(listCmd)
	PolicyCmd.AddCommand(grantCmd)
	PolicyCmd.AddCommand(revokeCmd)
}

func policyRule(role, path, method string) ([]string, error) {
	r, err := auth.ParseRole(role)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("route pattern must start with '/', got %q", path)
	}
	m := normalizeMethod(method)
	switch m {
	case auth.AnyAction, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
	return []string{r.Authority(), path, m}, nil
}

func normalizeMethod(method string) string {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		return auth.AnyAction
	}
	return m
}

func grant(e casbin.IEnforcer, role, path, method string) (bool, error) {
	rule, err := policyRule(role, path, method)
	if err != nil {
		return false, err
	}
	added, err := e.AddPolicy(rule[0], rule[1], rule[2])
	if err != nil {
		return false, fmt.Errorf("failed to add policy: %w", err)
	}
	return added, nil
}

func revoke(e casbin.IEnforcer, role, path, method string) (bool, error) {
	rule, err := policyRule(role, path, method)
	if err != nil {
		return false, err
	}
	removed, err := e.RemovePolicy(rule[0], rule[1], rule[2])
	if err != nil {
		return false, fmt.Errorf("failed to remove policy: %w", err)
	}
	return removed, nil
}

func writePolicies(out io.Writer, e casbin.IEnforcer) error {
	policies, err := e.GetPolicy()
	if err != nil {
		return fmt.Errorf("failed to list policies: %w", err)
	}
	sort.Slice(policies, func(i, j int) bool {
		return strings.Join(policies[i], " ") < strings.Join(policies[j], " ")
	})

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tROUTE\tMETHOD")
	for _, p := range policies {
		if len(p) < 3 {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p[0], p[1], p[2])
	}
	return w.Flush()
}
