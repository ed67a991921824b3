package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/logger"
	"github.com/spf13/cobra"
)

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(database.MigrateUp), string(database.MigrateDown)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, database.MigrateDirection(args[0]))
		},
	}
}

func runMigrate(opts *rootOptions, direction database.MigrateDirection) error {
	if strings.HasPrefix(opts.dsn, database.MemoryDSN) {
		return fmt.Errorf("migrations apply to PostgreSQL only")
	}

	log, err := logger.New(opts.env, opts.logLevel, os.Stderr)
	if err != nil {
		return err
	}

	if err := database.Migrate(opts.dsn, direction); err != nil {
		return err
	}

	log.Info().Str("direction", string(direction)).Msg("migrations applied")
	return nil
}
