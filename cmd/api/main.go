package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/notehub/internal/auth"
	"github.com/geocoder89/notehub/internal/config"
	"github.com/geocoder89/notehub/internal/db"
	httpx "github.com/geocoder89/notehub/internal/http"
	"github.com/geocoder89/notehub/internal/http/handlers"
	"github.com/geocoder89/notehub/internal/http/middlewares"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/geocoder89/notehub/internal/redisclient"
	"github.com/geocoder89/notehub/internal/repo/memory"
	"github.com/geocoder89/notehub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// stores is the process-owned data layer, whichever driver backs it.
type stores struct {
	users       auth.UserResolver
	credentials handlers.UserReader
	tenants     httpx.TenantStore
	notes       handlers.NotesStore
	provisioner db.Provisioner
	ping        handlers.Pinger
	close       func()
}

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}
	cfg.LogSummary(log)

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: cfg.OTelServiceName,
		Env:         cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	st, err := openStores(ctx, cfg, prom)
	if err != nil {
		log.Error("store init failed", "store", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer st.close()

	if cfg.SeedDemo {
		if err := db.SeedDemo(ctx, st.provisioner); err != nil {
			log.Error("demo seed failed", "err", err)
			os.Exit(1)
		}
		log.Info("demo tenants seeded", "password", db.DemoPassword)
	}

	checks := map[string]handlers.Pinger{"store": st.ping}

	var limiter middlewares.Limiter = middlewares.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		limiter = middlewares.NewRedisRateLimiter(rdb.Cmdable(), "notehub:login:", cfg.LoginRateLimit, cfg.LoginRateWindow)
		checks["redis"] = rdb.Ping
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	var shuttingDown atomic.Bool

	// set up routers with the log
	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Authenticator: auth.NewAuthenticator(tokens, st.users),
		Users:         st.credentials,
		Tenants:       st.tenants,
		Notes:         st.notes,
		Tokens:        tokens,
		LoginLimiter:  limiter,
		Prom:          prom,
		Gatherer:      reg,
		Checks:        checks,
		ShuttingDown:  shuttingDown.Load,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")
	shuttingDown.Store(true)

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		m := memory.NewStore()
		return stores{
			users:       m.Users(),
			credentials: m.Users(),
			tenants:     m.Tenants(),
			notes:       m.Notes(),
			provisioner: m,
			ping:        func(context.Context) error { return nil },
			close:       func() {},
		}, nil
	}

	pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		return stores{}, fmt.Errorf("connect postgres: %w", err)
	}

	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.EnsureSchema(schemaCtx, pool); err != nil {
		pool.Close()
		return stores{}, err
	}

	pg := postgres.NewStore(pool, prom)
	return stores{
		users:       pg.Users,
		credentials: pg.Users,
		tenants:     pg.Tenants,
		notes:       pg.Notes,
		provisioner: pg,
		ping:        pool.Ping,
		close:       pool.Close,
	}, nil
}
