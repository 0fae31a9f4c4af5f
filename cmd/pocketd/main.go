// Command pocketd serves the entities of a metadata catalog over a JSON
// HTTP API backed by a SQL database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/pocket/catalog"
	"github.com/syssam/pocket/catalog/load"
	"github.com/syssam/pocket/dialect/sql"
	"github.com/syssam/pocket/dispatch"
	"github.com/syssam/pocket/internal/config"
	"github.com/syssam/pocket/persist"
	"github.com/syssam/pocket/planner"
	"github.com/syssam/pocket/privacy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "pocketd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	log := cfg.Logger(stderr)
	slog.SetDefault(log)

	drv, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer drv.Close()

	cat, err := load.Catalog(cfg.MetadataDir)
	if err != nil {
		return err
	}
	for _, issue := range cat.Warnings() {
		log.Warn("catalog warning", "entity", issue.Entity, "field", issue.Field, "message", issue.Message)
	}
	holder := catalog.NewHolder(cat)
	log.Info("catalog loaded", "path", cfg.MetadataDir, "entities", cat.Len())
	if cfg.Watch {
		w := load.NewWatcher(cfg.MetadataDir, holder, load.WithLogger(log))
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("catalog watcher stopped", "error", err)
			}
		}()
	}

	srv, err := newServer(cfg, drv, holder, log)
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)
	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr, "driver", cfg.Driver, "dialect", drv.Dialect())
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down", "stats", srv.svc.QueryStats().Stats().String())
	return hs.Shutdown(shutdownCtx)
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.Driver, error) {
	drv, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := drv.PingContext(pingCtx); err != nil {
		drv.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return drv, nil
}

func newServer(cfg *config.Config, drv *sql.Driver, src catalog.Source, log *slog.Logger) (*server, error) {
	keys, ok := planner.KeyGeneratorFor(cfg.KeyStrategy)
	if !ok {
		return nil, fmt.Errorf("unknown key strategy %q", cfg.KeyStrategy)
	}
	svc := persist.New(src,
		persist.WithKeyGenerator(keys),
		persist.WithLogger(log),
		persist.WithPolicy(policyFor(cfg)),
		persist.WithExecutorOptions(
			sql.WithDialect(drv.Dialect()),
			sql.WithSlowThreshold(cfg.SlowThreshold),
			sql.WithSlowQueryLog(),
		),
	)
	bulk := dispatch.New(dispatch.ForDB(svc, drv.DB),
		dispatch.WithWorkers(cfg.Workers),
		dispatch.WithRate(cfg.Rate, cfg.Workers),
		dispatch.WithLogger(log),
	)
	return &server{
		svc:     svc,
		db:      drv,
		catalog: src,
		bulk:    bulk,
		log:     log,
		timeout: cfg.RequestTimeout,
	}, nil
}

// policyFor builds the access policy described by cfg.
func policyFor(cfg *config.Config) privacy.Policy {
	var p privacy.Policy
	if len(cfg.ReadOnly) > 0 {
		p = append(p, privacy.ReadOnly(cfg.ReadOnly...))
	}
	if cfg.WriterRole != "" {
		p = append(p,
			privacy.OnMutation(privacy.DenyIfNoViewer()),
			privacy.OnMutation(privacy.HasRole(cfg.WriterRole)),
			privacy.OnMutation(privacy.AlwaysDenyRule()),
		)
	}
	return p
}
