package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hanpama/memberql/internal/config"
	"github.com/hanpama/memberql/internal/graph"
	"github.com/hanpama/memberql/internal/resolver"
	"github.com/hanpama/memberql/internal/schema"
	"github.com/hanpama/memberql/internal/store/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	root := &cobra.Command{
		Use:   "memberql",
		Short: "memberql: GraphQL API for users, posts, profiles and subscriptions",
		Long: `memberql serves a GraphQL API over HTTP backed by an in-memory,
PostgreSQL or SQLite data store.

Settings come from flags, MEMBERQL_* environment variables (server.addr is
MEMBERQL_SERVER_ADDR) and an optional config file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Configuration file (yaml, json or toml)")
	if err := config.BindFlags(v, root.PersistentFlags()); err != nil {
		panic(err)
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		return config.ReadFile(v, path)
	}

	root.AddCommand(serveCmd(v), schemaCmd(), migrateCmd(v))
	return root
}

func serveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP GraphQL server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(cmd.Context())
		},
	}
}

func schemaCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the GraphQL schema in SDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sch, err := graph.New(resolver.IsAsync)
			if err != nil {
				return err
			}
			sdl := schema.Render(sch)
			if out == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), sdl)
				return err
			}
			return errors.Wrapf(os.WriteFile(out, []byte(sdl), 0o644), "writing %s", out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the SDL to file instead of stdout")
	return cmd
}

func migrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the SQL tables and seed the member types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if cfg.Store.Driver == config.DriverMemory {
				return errors.New("migrate needs store.driver postgres or sqlite")
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			dialect, err := sqlstore.DialectFor(cfg.Store.Driver)
			if err != nil {
				return err
			}
			s, err := sqlstore.Open(ctx, dialect, cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := prepareSQL(ctx, s, true); err != nil {
				return err
			}
			logger.Info("migration complete", zap.String("driver", dialect.Name))
			return nil
		},
	}
}
