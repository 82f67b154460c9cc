package principals

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/cmd/cmdutil"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/iam"
)

func newStatusCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cmdutil.OpenStore()
			if err != nil {
				return err
			}
			defer store.Close()

			revoked, err := setActive(cmd.Context(), store.Principals, store.Credentials, args[0], active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Principal %s %sd", iam.NormalizeEmail(args[0]), use)
			if revoked > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d live credentials revoked)", revoked)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// setActive flips a principal's status. Deactivation also revokes every live
// credential so outstanding tokens stop working immediately.
func setActive(ctx context.Context, principals repository.PrincipalRepository, credentials repository.CredentialRepository, email string, active bool) (int, error) {
	p, err := principals.GetByEmail(ctx, iam.NormalizeEmail(email))
	if err != nil {
		return 0, fmt.Errorf("failed to find principal %q: %w", email, err)
	}

	status := models.PrincipalInactive
	if active {
		status = models.PrincipalActive
	}
	if err := principals.SetStatus(ctx, p.ID, status); err != nil {
		return 0, fmt.Errorf("failed to update principal %q: %w", email, err)
	}
	if active {
		return 0, nil
	}

	n, err := credentials.RevokeAllLive(ctx, p.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke credentials of %q: %w", email, err)
	}
	return n, nil
}
