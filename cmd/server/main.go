// Command oxy-accounts starts the account gRPC server and the JSON API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/oxy-accounts/internal/config"
	pkgcrypto "github.com/and161185/oxy-accounts/internal/crypto"
	"github.com/and161185/oxy-accounts/internal/logging"
	"github.com/and161185/oxy-accounts/internal/migrate"
	grpcserver "github.com/and161185/oxy-accounts/internal/server/grpc"
	httpserver "github.com/and161185/oxy-accounts/internal/server/http"
	"github.com/and161185/oxy-accounts/internal/service"
	"github.com/and161185/oxy-accounts/internal/store"
	"github.com/and161185/oxy-accounts/internal/worker"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	dev := flag.Bool("dev", false, "development logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *dev {
		cfg.Dev = true
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("grpcAddr", cfg.GRPC.Addr),
		zap.String("httpAddr", cfg.HTTP.Addr),
		zap.String("driver", cfg.Postgres.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Postgres.Migrate {
		v, err := migrate.Up(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		logger.Info("schema ready", zap.Int64("version", v))
	}

	st, err := store.Open(ctx, cfg.Postgres, logger, cfg.Dev)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	hasher, err := pkgcrypto.NewHasher(cfg.Hash.Params())
	if err != nil {
		return err
	}
	pool := worker.NewPool(cfg.Hash.Workers)
	logger.Info("hasher ready",
		zap.String("algorithm", string(hasher.Params().Algorithm)),
		zap.Uint32("memoryKiB", hasher.Params().Memory),
		zap.Int("workers", pool.Size()),
	)

	accounts := service.NewAccountService(st.Accounts, hasher, pool, logger, service.Options{
		EntropyRetries: cfg.Hash.EntropyRetries,
	})

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.DeadlineUnary(cfg.GRPC.CallTimeout),
		),
	}
	if cfg.GRPC.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.GRPC.TLSCert, cfg.GRPC.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)
	grpcserver.RegisterAccountsServer(s, grpcserver.New(accounts, logger))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr), zap.Bool("tls", cfg.GRPC.TLSCert != ""))
		errCh <- s.Serve(lis)
	}()

	var api *httpserver.Server
	if cfg.HTTP.Addr != "" {
		api = httpserver.New(accounts, st, logger)
		go func() {
			logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
			if err := api.Start(cfg.HTTP.Addr); err != nil {
				errCh <- err
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	hs.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if api != nil {
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
	}
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.Stop()
	}
	return serveErr
}
