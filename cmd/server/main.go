package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/lock"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/rest"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/pkg/logging"
	"github.com/mmynk/splitledger/pkg/rpc"
)

const tokenDuration = 24 * time.Hour

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(cfg, os.Args[2:]); err != nil {
			logger.Error("Failed to issue token", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// printToken writes a signed session token for local use. Accounts live with the
// identity provider; the ledger only needs a user ID.
func printToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.String("user", "", "user ID to issue the token for")
	email := fs.String("email", "", "email to embed in the token")
	ttl := fs.Duration("ttl", tokenDuration, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, *ttl).Generate(*userID, *email)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "backend", cfg.StoreBackend, "database", cfg.DBPath)

	ledgerMetrics := metrics.New()
	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithMetrics(ledgerMetrics),
		ledger.WithRetryPolicy(ledger.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBase,
			MaxDelay:    time.Second,
		}),
	}

	var locker lock.Locker = lock.NewLocal(cfg.LockWait)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}

		locker = lock.NewRedis(rdb, lock.RedisOptions{TTL: cfg.LockTTL, Wait: cfg.LockWait})
		opts = append(opts, ledger.WithNetCache(cache.NewNetBalances(rdb, cfg.NetCacheTTL)))
		logger.Info("Redis locks and net balance cache enabled", "addr", cfg.RedisAddr)
	}

	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher))
		logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange)
	}

	engine := ledger.NewEngine(store, locker, opts...)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, tokenDuration)

	services := rest.Services{
		Expenses: service.NewExpenseService(engine, logger),
		Balances: service.NewBalanceService(engine, logger),
		Groups:   service.NewGroupService(store, logger),
	}

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
		rpc.NewValidationInterceptor(),
	)

	mux := http.NewServeMux()
	mux.Handle(rpc.NewExpenseServiceHandler(services.Expenses, interceptors))
	mux.Handle(rpc.NewBalanceServiceHandler(services.Balances, interceptors))
	mux.Handle(rpc.NewGroupServiceHandler(services.Groups, interceptors))
	mux.Handle("/api/", rest.NewRouter(services, jwtManager, logger))
	mux.Handle("GET /metrics", ledgerMetrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := chimw.RequestID(middleware.RequestLogger(logger)(middleware.CORS(mux)))

	srv := &http.Server{
		Addr: cfg.Addr(),
		// h2c serves HTTP/2 without TLS for Connect and gRPC clients.
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return memory.New(), nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	}
}
