// Package app arma el proceso: store, cache, limiter, auth, listeners.
// Todo el estado vive en *App; no hay globals de servidor ni de pool.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/questions/internal/auth"
	"github.com/dropDatabas3/questions/internal/cache"
	"github.com/dropDatabas3/questions/internal/config"
	authctrl "github.com/dropDatabas3/questions/internal/http/controllers/auth"
	"github.com/dropDatabas3/questions/internal/http/controllers/spa"
	"github.com/dropDatabas3/questions/internal/http/helpers"
	mw "github.com/dropDatabas3/questions/internal/http/middlewares"
	"github.com/dropDatabas3/questions/internal/http/router"
	"github.com/dropDatabas3/questions/internal/metrics"
	"github.com/dropDatabas3/questions/internal/oauth/github"
	"github.com/dropDatabas3/questions/internal/observability/logger"
	"github.com/dropDatabas3/questions/internal/rate"
	"github.com/dropDatabas3/questions/internal/store"
	_ "github.com/dropDatabas3/questions/internal/store/adapters/dal"
)

// Options para New. Sólo Config es obligatorio.
type Options struct {
	Config *config.Config

	// ConfigureGitHub permite apuntar el cliente OAuth a otro host (tests, GHE).
	ConfigureGitHub func(*github.Config)
}

// App es el contexto del proceso.
type App struct {
	Config   *config.Config
	Store    store.AdapterConnection
	Cache    cache.Client
	Limiter  rate.Limiter
	Auth     *auth.Service
	Registry *prometheus.Registry

	Handler    http.Handler
	OpsHandler http.Handler

	log    *zap.Logger
	server *http.Server
	ops    *http.Server

	mu        sync.Mutex
	addr      net.Addr
	opsAddr   net.Addr
	serveErrs chan error
}

// poolProvider lo implementan las conexiones respaldadas por pgxpool.
type poolProvider interface {
	Pool() *pgxpool.Pool
}

// New conecta el store (y corre migraciones si storage.migrate), arma cache,
// limiter, servicio de auth y los handlers. Un store inaccesible es error.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	log := logger.L().With(logger.Component("app"))
	a := &App{Config: cfg, log: log, serveErrs: make(chan error, 2)}

	conn, err := store.Open(ctx, store.AdapterConfig{
		Name:            cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
	})
	if err != nil {
		return nil, err
	}
	a.Store = conn
	log.Info("store connected", logger.Any("driver", conn.Name()))

	if cfg.Storage.Migrate {
		if err := a.Migrate(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	if err := a.buildCache(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := a.buildAuth(opts); err != nil {
		a.closeResources()
		return nil, err
	}

	if err := a.buildMetrics(); err != nil {
		a.closeResources()
		return nil, err
	}

	proxies, err := mw.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("app: %w", err)
	}

	a.Handler = router.New(router.Deps{
		Auth: authctrl.NewGitHubController(a.Auth, authctrl.Config{
			CookieName: cfg.Auth.CookieName,
			Cookie: helpers.CookieOptions{
				Domain:   cfg.Auth.CookieDomain,
				SameSite: cfg.Auth.CookieSameSite,
				Secure:   cfg.Auth.CookieSecure,
			},
		}),
		Validator:    a.Auth,
		SPA:          spa.New(cfg.Server.StaticDir),
		Limiter:      a.Limiter,
		Proxies:      proxies,
		CallbackPath: cfg.OAuth.GitHub.CallbackPath,
	})
	a.OpsHandler = router.NewOps(router.OpsDeps{
		Gatherer: a.Registry,
		Version:  cfg.App.Version,
		Checks: map[string]router.ReadyCheck{
			"store": conn.Ping,
			"cache": a.Cache.Ping,
		},
	})
	return a, nil
}

// Migrate aplica las migraciones pendientes si el store las soporta.
func (a *App) Migrate(ctx context.Context) error {
	mc, ok := a.Store.(store.MigratableConnection)
	if !ok {
		a.log.Debug("store without migrations", logger.Any("driver", a.Store.Name()))
		return nil
	}
	res, err := mc.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	a.log.Info("migrations applied", logger.Count(len(res.Applied)), logger.Any("skipped", len(res.Skipped)))
	return nil
}

func (a *App) buildCache(ctx context.Context) error {
	cfg := a.Config
	c, err := cache.New(ctx, cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.CacheTTL(),
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.Cache = c

	if !cfg.Rate.Enabled {
		return nil
	}
	// Con Redis el limiter comparte el cliente del cache.
	if rc, ok := c.(cache.RedisBacked); ok {
		a.Limiter = rate.NewRedisLimiter(rc.Redis(), redisRatePrefix(cfg.Cache.Redis.Prefix), cfg.Rate.MaxRequests, cfg.RateWindow())
		return nil
	}
	a.Limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.RateWindow())
	return nil
}

func redisRatePrefix(prefix string) string {
	if prefix == "" {
		return "rl:"
	}
	return prefix + ":rl:"
}

func (a *App) buildAuth(opts Options) error {
	cfg := a.Config

	secret := cfg.Auth.StateSecret
	if secret == "" {
		var b [32]byte
		if _, err := rand.Read(b[:]); err != nil {
			return fmt.Errorf("app: state secret: %w", err)
		}
		secret = hex.EncodeToString(b[:])
		a.log.Warn("STATE_SECRET not set: using a per-process secret; logins started on another instance will fail")
	}
	states, err := auth.NewStateIssuer(secret, "questions", 0)
	if err != nil {
		return err
	}

	gh := github.Config{
		ClientID:     cfg.OAuth.GitHub.ClientID,
		ClientSecret: cfg.OAuth.GitHub.ClientSecret,
		RedirectURL:  cfg.RedirectURL(),
		Scopes:       cfg.OAuth.GitHub.Scopes,
	}
	if opts.ConfigureGitHub != nil {
		opts.ConfigureGitHub(&gh)
	}

	a.Auth, err = auth.NewService(auth.Deps{
		Users:    a.Store.Users(),
		Provider: github.New(gh),
		States:   states,
		Cache:    a.Cache,
		Config: auth.Config{
			IdentitySource: cfg.Auth.IdentitySource,
			CacheTTL:       cfg.CacheTTL(),
		},
	})
	return err
}

func (a *App) buildMetrics() error {
	a.Registry = prometheus.NewRegistry()
	if err := a.Registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := a.Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}
	var pool func() *pgxpool.Pool
	if pp, ok := a.Store.(poolProvider); ok {
		pool = pp.Pool
	}
	return metrics.Register(a.Registry, pool)
}

// Start abre ambos listeners y sirve en background. Los errores de bind se
// devuelven acá; los posteriores salen por Errors().
func (a *App) Start(ctx context.Context) error {
	cfg := a.Config

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", cfg.Server.Addr, err)
	}
	opsLn, err := net.Listen("tcp", cfg.Server.OpsAddr)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("app: listen ops %s: %w", cfg.Server.OpsAddr, err)
	}

	baseCtx := func(net.Listener) context.Context { return context.WithoutCancel(ctx) }
	a.mu.Lock()
	a.addr, a.opsAddr = ln.Addr(), opsLn.Addr()
	a.server = &http.Server{
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       baseCtx,
	}
	a.ops = &http.Server{
		Handler:           a.OpsHandler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       baseCtx,
	}
	a.mu.Unlock()

	go a.serve(a.server, ln, "http")
	go a.serve(a.ops, opsLn, "ops")

	a.log.Info("listening", logger.Addr(ln.Addr().String()), logger.Any("ops_addr", opsLn.Addr().String()))
	return nil
}

func (a *App) serve(srv *http.Server, ln net.Listener, name string) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error("server stopped", logger.Component(name), logger.Err(err))
		a.serveErrs <- fmt.Errorf("app: %s server: %w", name, err)
	}
}

// Errors entrega fallas de Serve posteriores a Start.
func (a *App) Errors() <-chan error { return a.serveErrs }

// Addr retorna la dirección real del listener principal (útil con ":0").
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// OpsAddr retorna la dirección real del listener de ops.
func (a *App) OpsAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opsAddr
}

// Stop hace shutdown de ambos listeners y cierra cache y store.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv, ops := a.server, a.ops
	a.mu.Unlock()

	var errs []error
	if srv != nil {
		errs = append(errs, srv.Shutdown(ctx))
	}
	if ops != nil {
		errs = append(errs, ops.Shutdown(ctx))
	}
	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
