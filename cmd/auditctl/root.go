package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/huangang/auditdesk/backend/internal/config"
	"github.com/huangang/auditdesk/backend/internal/logstore"
	"github.com/huangang/auditdesk/backend/internal/models"
	"github.com/huangang/auditdesk/backend/internal/services"
	"github.com/huangang/auditdesk/backend/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// app is what every subcommand operates on.
type app struct {
	logs  *services.AuditLogService
	close func()
}

// opener builds the app from the loaded configuration.
type opener func(ctx context.Context, cfg *config.Config) (*app, error)

// openApp connects to the configured audit store directly, without the API.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := models.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store, err := logstore.New(ctx, &cfg.AuditStore, db)
	if err != nil {
		return nil, err
	}

	return &app{
		logs: services.NewAuditLogService(store, cfg.Audit),
		close: func() {
			_ = store.Close(context.Background())
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}, nil
}

// cli carries per-invocation state; a fresh viper keeps flags of separate
// invocations from leaking into each other.
type cli struct {
	v    *viper.Viper
	open opener
	app  *app
	out  io.Writer
}

func newRootCommand(open opener) *cobra.Command {
	c := &cli{v: viper.New(), open: open, out: os.Stdout}
	c.v.SetEnvPrefix("AUDITCTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "Query and prune the auditdesk audit log",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.out = cmd.OutOrStdout()
			_ = c.v.BindPFlags(cmd.Flags())

			lvl, err := zerolog.ParseLevel(c.v.GetString("log-level"))
			if err != nil {
				lvl = zerolog.WarnLevel
			}
			logger.SetOutput(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}, lvl)

			switch c.v.GetString("output") {
			case outputText, outputJSON:
			default:
				return fmt.Errorf("unknown output %q, expected text or json", c.v.GetString("output"))
			}

			cfg, err := config.Load(c.v.GetString("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			c.app, err = c.open(cmd.Context(), cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.app != nil && c.app.close != nil {
				c.app.close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "C", os.Getenv("CONFIG_PATH"), "Path to the auditdesk config file")
	flags.StringP("output", "o", outputText, "Output format (one of [text, json])")
	flags.StringP("log-level", "l", "warn", "Log level written to stderr")

	root.AddCommand(
		c.listCommand(),
		c.countCommand(),
		c.actionsCommand(),
		c.exportCommand(),
		c.pruneCommand(),
	)
	return root
}

// addFilterFlags registers the store-side filter flags plus search.
func addFilterFlags(cmd *cobra.Command, withSearch bool) {
	cmd.Flags().String("action", "", "Only logs with this action (\"all\" disables the filter)")
	cmd.Flags().String("performed-by", "", "Only logs performed by this actor id")
	cmd.Flags().String("since", "", "Earliest timestamp, RFC 3339 or YYYY-MM-DD")
	cmd.Flags().String("until", "", "Latest timestamp, RFC 3339 or YYYY-MM-DD (whole day)")
	if withSearch {
		cmd.Flags().String("search", "", "Case-insensitive match on email, action or target")
	}
}

func (c *cli) filter() (*services.LogsFilter, error) {
	f := &services.LogsFilter{
		Action:      c.v.GetString("action"),
		PerformedBy: c.v.GetString("performed-by"),
		SearchTerm:  c.v.GetString("search"),
	}

	var err error
	if f.StartDate, err = services.ParseDate(c.v.GetString("since"), false); err != nil {
		return nil, fmt.Errorf("invalid --since: %w", err)
	}
	if f.EndDate, err = services.ParseDate(c.v.GetString("until"), true); err != nil {
		return nil, fmt.Errorf("invalid --until: %w", err)
	}
	return f, nil
}

func (c *cli) jsonOutput() bool {
	return c.v.GetString("output") == outputJSON
}
