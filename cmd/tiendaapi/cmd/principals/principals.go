package principals

import "github.com/spf13/cobra"

// PrincipalsCmd is the parent command for principal management operations
var PrincipalsCmd = &cobra.Command{
	Use:   "principals",
	Short: "Manage principals",
	Long:  `Commands for managing principals (customers and administrators) directly from the server.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address (login identifier) of the principal")
	createCmd.Flags().StringVar(&nameFlag, "name", "", "Given name of the principal")
	createCmd.Flags().StringVar(&surnameFlag, "surname", "", "Surname of the principal")
	createCmd.Flags().StringVar(&phoneFlag, "phone", "", "Optional phone number")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the principal (use --stdin to avoid shell history)")
	createCmd.Flags().StringSliceVar(&rolesInput, "role", []string{}, "Role(s) to assign (USER, ADMIN); defaults to USER")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")

	rolesCmd.Flags().StringSliceVar(&roleAssignments, "role", []string{}, "Role(s) the principal ends up with (USER, ADMIN)")

	PrincipalsCmd.AddCommand(createCmd)
	PrincipalsCmd.AddCommand(listCmd)
	PrincipalsCmd.AddCommand(newStatusCmd("activate", "Allow a principal to log in again", true))
	PrincipalsCmd.AddCommand(newStatusCmd("deactivate", "Block a principal and revoke its live credentials", false))
	PrincipalsCmd.AddCommand(rolesCmd)
}
