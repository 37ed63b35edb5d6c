package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kvetinski/identity/config"
	"github.com/kvetinski/identity/internal/adapters/grpcapi"
	"github.com/kvetinski/identity/internal/adapters/grpcapi/identityv1"
	"github.com/kvetinski/identity/internal/adapters/httpapi"
	"github.com/kvetinski/identity/internal/adapters/memstore"
	"github.com/kvetinski/identity/internal/adapters/redisstore"
	"github.com/kvetinski/identity/internal/adapters/repository"
	"github.com/kvetinski/identity/internal/adapters/sms"
	"github.com/kvetinski/identity/internal/otp"
	"github.com/kvetinski/identity/internal/security"
	accountsvc "github.com/kvetinski/identity/internal/service/account"
	"github.com/kvetinski/identity/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	logger.Info("starting identity service",
		"env", cfg.AppEnv,
		"grpc_addr", cfg.GRPCAddr,
		"http_addr", cfg.HTTPAddr,
		"metrics_addr", cfg.MetricsAddr,
		"store", cfg.StoreDriver,
		"sms", cfg.SMSDriver,
	)

	ctx := context.Background()
	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  cfg.TracingServiceName,
		Environment:  cfg.AppEnv,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		Insecure:     cfg.TracingOTLPInsecure,
		SampleRatio:  cfg.TracingSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("shutdown tracing failed", "error", err)
		}
	}()

	metrics := telemetry.NewMetrics(nil)

	repo, closeStore, err := openStore(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var sender accountsvc.Sender
	switch cfg.SMSDriver {
	case config.SMSLog:
		logger.Warn("sms log driver enabled, verification codes are written to the log")
		sender = sms.NewLogSender(logger)
	default:
		sender = sms.NewInfobipClient(cfg.InfobipAPIKey, cfg.InfobipBaseURL, cfg.SMSSender, metrics)
	}

	tokens, err := security.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	svc := accountsvc.New(
		repo,
		security.NewHasher(cfg.BcryptCost),
		otp.NewGenerator(),
		sender,
		tokens,
		accountsvc.WithDeliveryTimeout(cfg.SMSTimeout),
		accountsvc.WithLogger(logger),
		accountsvc.WithMetrics(metrics),
	)

	grpcSrv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(grpcapi.UnaryMetricsInterceptor(metrics, logger)),
	)
	identityv1.RegisterIdentityServiceServer(grpcSrv, grpcapi.NewServer(svc, logger))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(identityv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(svc, metrics, logger).Routes(cfg.AllowedOrigins()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	defer lis.Close()

	errCh := make(chan error, 3)

	go func() {
		logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		logger.Info("grpc server listening", "addr", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
	}

	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	httpErrCh := make(chan error, 2)
	for name, srv := range map[string]*http.Server{"http": httpSrv, "metrics": metricsSrv} {
		go func() {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				httpErrCh <- fmt.Errorf("shutdown %s server: %w", name, err)
				return
			}
			httpErrCh <- nil
		}()
	}

	grpcDone := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(grpcDone)
	}()

	select {
	case <-grpcDone:
		logger.Info("grpc server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("grpc graceful shutdown timed out, forcing stop")
		grpcSrv.Stop()
	}

	var shutdownErr error
	for range 2 {
		shutdownErr = errors.Join(shutdownErr, <-httpErrCh)
	}
	if shutdownErr != nil {
		return shutdownErr
	}

	logger.Info("shutdown complete")
	return nil
}

// openStore connects the configured account store. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (accountsvc.Repository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("memory store enabled, accounts are lost on restart")
		return memstore.NewWithMetrics(metrics), func() {}, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("redis connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return redisstore.NewWithMetrics(rdb, metrics), closer(rdb, logger, "redis"), nil

	default:
		if cfg.MigrateOnStart {
			if err := repository.Migrate(cfg.PostgresURI, "up"); err != nil {
				return nil, nil, err
			}
			logger.Info("database migrations applied")
		}

		db, err := sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		if err = db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping db: %w", err)
		}
		logger.Info("database connected")

		if err = telemetry.RegisterDBPoolMetrics(db, nil); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("register db pool metrics: %w", err)
		}

		return repository.NewWithMetrics(db, metrics), closer(db, logger, "postgres"), nil
	}
}

func closer(c io.Closer, logger *slog.Logger, name string) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Error("close store failed", "store", name, "error", err)
		}
	}
}
