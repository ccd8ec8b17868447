package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/todo-keeper/internal/config"
	"github.com/and161185/todo-keeper/internal/health"
	"github.com/and161185/todo-keeper/internal/limiter"
	"github.com/and161185/todo-keeper/internal/migrate"
	"github.com/and161185/todo-keeper/internal/repository"
	"github.com/and161185/todo-keeper/internal/repository/dataapi"
	"github.com/and161185/todo-keeper/internal/repository/memory"
	mongostore "github.com/and161185/todo-keeper/internal/repository/mongo"
	"github.com/and161185/todo-keeper/internal/repository/postgres"
	grpcserver "github.com/and161185/todo-keeper/internal/server/grpc"
	httpserver "github.com/and161185/todo-keeper/internal/server/http"
	"github.com/and161185/todo-keeper/internal/service"
)

const shutdownTimeout = 10 * time.Second

// backend bundles one driver's stores with its liveness probe.
type backend struct {
	todos    repository.TodoStore
	accounts repository.AccountStore
	pinger   health.Pinger
	limiter  limiter.Limiter
	close    func()
}

// openBackend connects the configured driver. Nothing here waits for the database:
// reachability, migrations and indexes are the supervisor's job.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DatabaseDSN, cfg.BackendTimeout)
		if err != nil {
			return nil, err
		}
		gate := &repository.Gate{}
		prepare := func(context.Context) error { return nil }
		if cfg.AutoMigrate {
			prepare = func(ctx context.Context) error { return migrateUp(ctx, cfg.DatabaseDSN) }
		}
		return &backend{
			todos:    repository.GateTodos(postgres.NewTodoRepo(db), gate),
			accounts: repository.GateAccounts(postgres.NewAccountRepo(db), gate),
			pinger:   &preparingPinger{p: db, prepare: prepare, gate: gate, what: "postgres migrations", log: log},
			limiter: limiter.Gated{
				L: limiter.NewPG(db.Pool, limiter.Policy{
					Window:   cfg.Limiter.Window,
					MaxFails: cfg.Limiter.MaxFails,
					BlockFor: cfg.Limiter.BlockFor,
				}),
				Ready: gate.Ready,
			},
			close: db.Close,
		}, nil

	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.BackendTimeout)
		if err != nil {
			return nil, err
		}
		store := mongostore.New(client.Database(cfg.Mongo.Database))
		gate := &repository.Gate{}
		return &backend{
			todos:    repository.GateTodos(store, gate),
			accounts: repository.GateAccounts(store, gate),
			pinger:   &preparingPinger{p: store, prepare: store.EnsureIndexes, gate: gate, what: "mongo indexes", log: log},
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.BackendTimeout)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil

	case config.DriverDataAPI:
		store := dataapi.New(dataapi.NewClient(dataapi.Config{
			BaseURL:    cfg.DataAPI.URL,
			APIKey:     cfg.DataAPI.Key,
			DataSource: cfg.DataAPI.DataSource,
			Database:   cfg.Mongo.Database,
		}, nil, cfg.BackendTimeout))
		return &backend{todos: store, accounts: store, pinger: store, close: func() {}}, nil

	case config.DriverMemory:
		store := memory.New()
		return &backend{todos: store, accounts: store, pinger: store, close: func() {}}, nil
	}
	return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}

// migrateUp is swapped in tests.
var migrateUp = migrate.Up

// preparingPinger runs prepare (migrations, index creation) on the first successful ping and
// then opens gate. Until then the gated stores answer ErrBackendUnavailable, so a server started
// before its database serves 503s instead of exiting, and no write lands without its unique keys.
// prepare runs under the supervisor's ping timeout and is retried on the next ping if it fails.
type preparingPinger struct {
	p       health.Pinger
	prepare func(ctx context.Context) error
	gate    *repository.Gate
	what    string
	log     *zap.Logger

	mu sync.Mutex
}

func (p *preparingPinger) Ping(ctx context.Context) error {
	if err := p.p.Ping(ctx); err != nil {
		return err
	}
	if p.gate.Ready() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gate.Ready() {
		return nil
	}
	if err := p.prepare(ctx); err != nil {
		p.log.Warn("backend reachable but not prepared", zap.String("step", p.what), zap.Error(err))
		return err
	}
	p.gate.Open()
	p.log.Info("backend prepared", zap.String("step", p.what))
	return nil
}

// serve runs the HTTP server, the backend supervisor and the optional gRPC health
// endpoint until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("driver", cfg.Driver),
		zap.String("env", cfg.Env),
	)

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	state := health.NewState()
	sup := health.NewSupervisor(be.pinger, state, log.Named("supervisor"), health.Policy{
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		BaseDelay:   cfg.Reconnect.BaseDelay,
		MaxDelay:    cfg.Reconnect.MaxDelay,
		Interval:    cfg.Reconnect.Interval,
		PingTimeout: cfg.BackendTimeout,
	})
	supCtx, stopSup := context.WithCancel(ctx)
	defer stopSup()
	go sup.Run(supCtx)

	tokens := service.NewTokenService([]byte(cfg.JWTSecret))
	auth := service.NewAuthService(service.NewCredentialStore(be.accounts, cfg.BackendTimeout), tokens, be.limiter)
	todos := service.NewTodoService(be.todos, cfg.BackendTimeout)

	h := httpserver.NewHandler(auth, todos, tokens, state, log.Named("http"))
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpserver.New(h, httpserver.CORSOptions{
			Origins:  cfg.CORS.Origins,
			Suffixes: cfg.CORS.Suffixes,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var stopGRPC func()
	if cfg.HealthGRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.HealthGRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc health: %w", err)
		}
		gs := grpcserver.New(state, log.Named("grpc"))
		go func() {
			log.Info("grpc health listening", zap.String("addr", cfg.HealthGRPCAddr))
			if err := gs.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc health server: %w", err)
			}
		}()
		stopGRPC = gs.GracefulStop
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
		return err
	}

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopGRPC != nil {
		stopGRPC()
	}
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("shutdown complete")
	return nil
}
