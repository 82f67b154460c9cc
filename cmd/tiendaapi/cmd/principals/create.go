package principals

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/cmd/cmdutil"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/iam"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/validation"
)

var (
	emailFlag    string
	nameFlag     string
	surnameFlag  string
	phoneFlag    string
	passwordFlag string
	rolesInput   []string
	stdinFlag    bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new principal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		if nameFlag == "" {
			return fmt.Errorf("--name flag is required")
		}

		password := passwordFlag
		if stdinFlag {
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			var err error
			if password, err = readPassword(cmd.InOrStdin()); err != nil {
				return err
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		roles, err := auth.ParseRoles(rolesInput)
		if err != nil {
			return fmt.Errorf("%w\nValid roles are: %s", err, strings.Join(roleNames(auth.AllRoles()), ", "))
		}

		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		defer store.Close()

		in := iam.RegisterInput{
			Email:    emailFlag,
			Password: password,
			Name:     nameFlag,
			Surname:  surnameFlag,
			Phone:    phoneFlag,
		}
		if in.Surname == "" {
			in.Surname = nameFlag
		}

		p, err := createPrincipal(cmd.Context(), store.Principals, in, roles)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Principal created successfully!")
		fmt.Fprintln(out, "----------------------------------------")
		fmt.Fprintf(out, "Principal ID: %s\n", p.ID)
		fmt.Fprintf(out, "Email: %s\n", p.Email)
		fmt.Fprintf(out, "Name: %s %s\n", p.Name, p.Surname)
		fmt.Fprintf(out, "Roles: %s\n", strings.Join(roleNames(p.RoleSet()), ", "))
		fmt.Fprintln(out, "----------------------------------------")
		return nil
	},
}

// createPrincipal stores a principal and turns service errors into CLI messages.
func createPrincipal(ctx context.Context, principals repository.PrincipalRepository, in iam.RegisterInput, roles []auth.Role) (*models.Principal, error) {
	v, err := validation.New(validation.DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	p, err := iam.CreatePrincipal(ctx, principals, v, in, roles...)
	if err != nil {
		if ierr, ok := iam.AsError(err); ok && ierr.Kind != iam.KindInternal {
			return nil, fmt.Errorf("cannot create principal %q: %s", in.Email, strings.Join(ierr.Messages, "; "))
		}
		return nil, fmt.Errorf("failed to create principal: %w", err)
	}
	return p, nil
}

func readPassword(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return "", nil
}

func roleNames(roles []auth.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}
