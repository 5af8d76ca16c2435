package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/memberql/internal/config"
	"github.com/hanpama/memberql/internal/eventbus"
	"github.com/hanpama/memberql/internal/executor"
	"github.com/hanpama/memberql/internal/graph"
	"github.com/hanpama/memberql/internal/introspection"
	"github.com/hanpama/memberql/internal/logging"
	"github.com/hanpama/memberql/internal/metrics"
	"github.com/hanpama/memberql/internal/otel"
	"github.com/hanpama/memberql/internal/resolver"
	"github.com/hanpama/memberql/internal/server"
	"github.com/hanpama/memberql/internal/store"
	"github.com/hanpama/memberql/internal/store/memstore"
	"github.com/hanpama/memberql/internal/store/sqlstore"
)

const shutdownTimeout = 10 * time.Second

// app is a wired server: store, runtime, HTTP routes and observers.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	handler http.Handler
	closers []func() error
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	eventbus.Use(eventbus.New())
	a.onClose(func() error { eventbus.Use(nil); return nil })
	detachLog := logging.Attach(logger)
	a.onClose(func() error { detachLog(); return nil })

	shutdown, err := otel.Setup(ctx, cfg.OTel.Endpoint, cfg.OTel.Service)
	if err != nil {
		return nil, errors.Wrap(err, "otel setup")
	}
	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdown(ctx)
	})

	gw, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.onClose(closeStore)
	gw = store.Instrument(gw)

	rt, err := resolver.New(gw, cfg.Resolver)
	if err != nil {
		return nil, err
	}
	sch, err := graph.New(resolver.IsAsync)
	if err != nil {
		return nil, err
	}
	if err := resolver.Check(sch); err != nil {
		return nil, err
	}

	var runtime executor.Runtime = rt
	if cfg.GraphQL.Introspection {
		w := introspection.Wrap(runtime, sch)
		runtime, sch = w.Runtime, w.Schema
	}

	opts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithPretty(cfg.Server.Pretty),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(cfg.Server.CORSOrigins...))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(runtime, sch, opts...))
	pinger, _ := gw.(store.Pinger)
	mux.Handle("/healthz", server.Health(pinger))
	if cfg.Metrics.Enabled {
		m := metrics.New()
		detach := m.Attach()
		a.onClose(func() error { detach(); return nil })
		mux.Handle("/metrics", m.Handler())
	}
	a.handler = mux
	ready = true
	return a, nil
}

func (a *app) onClose(f func() error) { a.closers = append(a.closers, f) }

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return first
}

// Serve listens on the configured address until ctx is cancelled, then
// drains in-flight requests.
func (a *app) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("GraphQL server listening",
			zap.String("addr", srv.Addr),
			zap.String("store", a.cfg.Store.Driver),
			zap.Bool("introspection", a.cfg.GraphQL.Introspection))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Store) (store.Gateway, func() error, error) {
	if cfg.Driver == config.DriverMemory {
		var opts []memstore.Option
		if !cfg.Seed {
			opts = append(opts, memstore.WithoutSeed())
		}
		return memstore.New(opts...), func() error { return nil }, nil
	}

	dialect, err := sqlstore.DialectFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	s, err := sqlstore.Open(ctx, dialect, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := prepareSQL(ctx, s, cfg.Seed); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, s.Close, nil
}

func prepareSQL(ctx context.Context, s *sqlstore.Store, seed bool) error {
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	if !seed {
		return nil
	}
	return store.SeedMemberTypes(ctx, s)
}
