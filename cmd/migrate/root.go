package main

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/ragatool/backend-go/internal/config"
	"github.com/ragatool/backend-go/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// migrateConfig holds the flags shared by every subcommand.
type migrateConfig struct {
	databaseURL string
	path        string
}

// openManager 连接数据库并创建迁移管理器，调用方负责 Close
type openManager func(cfg migrateConfig) (migrator, func(), error)

// migrator 迁移操作
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	ForceVersion(version int) error
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(openPostgres)
}

func newRootCmdWith(open openManager) *cobra.Command {
	var cfg migrateConfig

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the task and log table schema",
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&cfg.databaseURL, "database-url", "", "PostgreSQL URL (defaults to config database.url)")
	cmd.PersistentFlags().StringVar(&cfg.path, "path", "", "migration directory (defaults to config database.migrations_path)")

	run := func(fn func(m migrator, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := open(cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			return fn(m, cmd, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(m migrator, cmd *cobra.Command, _ []string) error {
				if err := m.Up(); err != nil {
					return fmt.Errorf("migration up failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: run(func(m migrator, cmd *cobra.Command, _ []string) error {
				if err := m.Steps(-1); err != nil {
					return fmt.Errorf("migration down failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rollback completed successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, negative N rolls back",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(m migrator, cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q: %w", args[0], err)
				}
				return m.Steps(n)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: run(func(m migrator, cmd *cobra.Command, _ []string) error {
				version, dirty, err := m.Version()
				if err != nil {
					return fmt.Errorf("failed to get version: %w", err)
				}
				out := fmt.Sprintf("Current version: %d", version)
				if dirty {
					out += " (dirty - manual intervention required)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(m migrator, cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return m.ForceVersion(v)
			}),
		},
	)
	return cmd
}

// openPostgres 按参数或配置连接数据库
func openPostgres(flags migrateConfig) (migrator, func(), error) {
	url, path := flags.databaseURL, flags.path
	if url == "" || path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		if url == "" {
			url = cfg.Database.URL
		}
		if path == "" {
			path = cfg.Database.MigrationsPath
		}
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	mm, err := database.NewMigrationManager(db, path, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return mm, func() {
		_ = mm.Close()
		_ = db.Close()
	}, nil
}
