package principals

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/cmd/cmdutil"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/iam"
)

var roleAssignments []string

var rolesCmd = &cobra.Command{
	Use:   "roles <email>",
	Short: "Replace the roles of a principal",
	Long: `Replaces the role set of a principal. Tokens already issued keep the roles
they were minted with until the principal logs in or refreshes again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := setRoles(cmd.Context(), store.Principals, args[0], roleAssignments)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Principal %s now has roles %s\n", p.Email, strings.Join(roleNames(p.RoleSet()), ","))
		return nil
	},
}

func setRoles(ctx context.Context, principals repository.PrincipalRepository, email string, names []string) (*models.Principal, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one --role is required")
	}
	roles, err := auth.ParseRoles(names)
	if err != nil {
		return nil, err
	}

	p, err := principals.GetByEmail(ctx, iam.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find principal %q: %w", email, err)
	}
	if err := principals.SetRoles(ctx, p.ID, roles); err != nil {
		return nil, fmt.Errorf("failed to update roles of %q: %w", email, err)
	}
	return principals.GetByID(ctx, p.ID)
}
