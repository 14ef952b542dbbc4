// Command tk-server starts the Timekeeper gRPC server and its REST/metrics HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/timekeeper/internal/config"
	"github.com/and161185/timekeeper/internal/migrate"
	"github.com/and161185/timekeeper/internal/repository/postgres"
	"github.com/and161185/timekeeper/internal/rpc"
	grpcserver "github.com/and161185/timekeeper/internal/server/grpc"
	"github.com/and161185/timekeeper/internal/server/httpapi"
	"github.com/and161185/timekeeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves gRPC and HTTP until signalled.
func main() {
	cfg, err := config.LoadServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("httpAddr", cfg.HTTPAddr),
		zap.Bool("tls", cfg.TLS()),
		zap.Bool("auth", cfg.JWTKey != ""),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories & services
	projectSvc := service.NewProjectService(postgres.NewProjectRepo(db))
	sessionSvc := service.NewSessionService(postgres.NewSessionRepo(db))
	settingSvc := service.NewSettingService(postgres.NewSettingRepo(db))

	var tokens *service.TokenServiceImpl
	if cfg.JWTKey != "" {
		tokens = service.NewTokenService(postgres.NewDeviceRepo(db), []byte(cfg.JWTKey), cfg.TokenTTL)
	}

	if cfg.IssueToken != "" {
		dev, tok, err := tokens.Issue(ctx, cfg.IssueToken)
		if err != nil {
			logger.Fatal("issue token", zap.Error(err))
		}
		fmt.Printf("device_id: %s\ntoken: %s\n", dev.ID, tok)
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := grpcserver.NewMetrics(reg)

	// gRPC server with interceptors
	chain := []grpc.UnaryServerInterceptor{
		metrics.Unary(),
		grpcserver.RecoverUnary(logger),
		grpcserver.LoggingUnary(logger),
	}
	if tokens != nil {
		chain = append(chain, grpcserver.AuthUnary(tokens))
	}
	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(chain...)}
	if cfg.TLS() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)
	rpc.RegisterTimekeeperServer(s, grpcserver.New(projectSvc, sessionSvc, settingSvc, logger))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLS()))
		errCh <- s.Serve(lis)
	}()

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		deps := httpapi.Deps{
			Projects: projectSvc,
			Sessions: sessionSvc,
			Settings: settingSvc,
			DB:       db,
			Registry: reg,
			Log:      logger,
		}
		if tokens != nil {
			deps.Auth = tokens
		}
		httpSrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.New(deps),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		if httpSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = httpSrv.Shutdown(shutdownCtx)
			cancel()
		}
		// graceful shutdown
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
