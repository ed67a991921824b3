package main

import (
	"fmt"
	"os"

	"github.com/npezzotti/roamchat/internal/config"
	"github.com/spf13/cobra"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	dsn      string
	env      string
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "roamchat",
		Short:         "Location-aware group chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn",
		config.EnvOr("DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"),
		"database connection string, or memory:// for an in-process store")
	cmd.PersistentFlags().StringVar(&opts.env, "env", config.EnvOr("ENV", "dev"), "runtime environment (dev renders human-readable logs)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", config.EnvOr("LOG_LEVEL", "info"), "log level")

	cmd.AddCommand(newServeCommand(opts), newMigrateCommand(opts))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "roamchat:", err)
		os.Exit(1)
	}
}
