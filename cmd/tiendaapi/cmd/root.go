package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/cmd/policy"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/cmd/principals"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/config"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/logger"
)

var (
	cfg     *config.Config
	logg    zerolog.Logger
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "tiendaapi",
	Short: "Tienda API server",
	Long: `Tienda API server issues and validates bearer credentials for the
storefront and exposes the authenticated REST endpoints.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logg, err = logger.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to configure logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML/JSON/TOML config file")
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: TIENDA_DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: TIENDA_SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: TIENDA_DEBUG)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json (env: TIENDA_LOG_FORMAT)")

	bindFlag("database_url", "db-url")
	bindFlag("server_addr", "server-addr")
	bindFlag("debug", "debug")
	bindFlag("log.format", "log-format")

	rootCmd.AddCommand(principals.PrincipalsCmd)
	rootCmd.AddCommand(policy.PolicyCmd)
}

// bindFlag wires a persistent flag into viper so an explicitly set flag
// overrides environment and file values.
func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
