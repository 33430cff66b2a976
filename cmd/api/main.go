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

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"fleetops.io/internal/audit"
	"fleetops.io/internal/auth"
	"fleetops.io/internal/catalog"
	"fleetops.io/internal/config"
	"fleetops.io/internal/httpapi"
	"fleetops.io/internal/idcodec"
	"fleetops.io/internal/obs"
	"fleetops.io/internal/records"
	"fleetops.io/internal/store/pg"
	sessions "fleetops.io/internal/store/redis"
)

// version and commit are overridden at link time.
var (
	version = ""
	commit  = ""
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fleetops-api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if version == "" {
		version = cfg.App.Version
	}
	if commit == "" {
		commit = cfg.App.Commit
	}

	logger, err := obs.InitLogger(cfg.App.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.InitTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.App.Name, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	store, err := pg.Open(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	rdb, err := sessions.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	sessionStore := sessions.NewSessionStore(rdb, cfg.Redis.SessionPrefix)

	var sinks []audit.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := audit.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		sink, err := audit.NewKafkaSink(producer, cfg.Kafka.AuditTopic)
		if err != nil {
			_ = producer.Close()
			return err
		}
		defer sink.Close()
		sinks = append(sinks, sink)
		logger.Info("audit stream enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.AuditTopic))
	}
	recorder := audit.NewRecorder(sinks...)

	codec, err := idcodec.New([]byte(cfg.IDs.Secret))
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer([]byte(cfg.Session.Secret), cfg.Session.Issuer)
	if err != nil {
		return err
	}
	authn, err := auth.NewAuthenticator(tokens, sessionStore)
	if err != nil {
		return err
	}
	builder, err := auth.NewBuilder(store, catalog.Default())
	if err != nil {
		return err
	}
	rbac, err := auth.NewRBACService(store, catalog.Default())
	if err != nil {
		return err
	}
	recordSvc, err := records.NewService(store, codec, recorder)
	if err != nil {
		return err
	}

	probe := httpapi.ReadyProbe{DB: store, Sessions: sessionStore}
	api, err := httpapi.New(httpapi.Deps{
		Authenticator: authn,
		Contexts:      builder,
		Records:       recordSvc,
		RBAC:          rbac,
		Sessions:      sessionStore,
		Codec:         codec,
		Audit:         recorder,
		Ready:         probe,
		Version:       version,
	},
		httpapi.WithRateLimit(cfg.RateLimit.Burst, cfg.RateLimit.PerSecond),
		httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	health := httpapi.NewGRPCServer(probe, version)
	grpcSrv := grpc.NewServer()
	health.Register(grpcSrv)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPC.Addr, err)
	}
	go health.Run(ctx, 10*time.Second)

	errc := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errc <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http serve: %w", err)
		}
	}()

	return awaitShutdown(ctx, errc, cfg.HTTP.ShutdownTimeout,
		srv.Shutdown,
		func(context.Context) error { grpcSrv.GracefulStop(); return nil },
	)
}

// awaitShutdown blocks until ctx is done or a server fails, then runs every
// shutdown step. A server failure is returned after the shutdown completes.
func awaitShutdown(ctx context.Context, errc <-chan error, timeout time.Duration, steps ...func(context.Context) error) error {
	logger := obs.Logger()
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errc:
		logger.Error("server failed", zap.Error(serveErr))
	}

	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, step := range steps {
		if err := step(sctx); err != nil {
			logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
	logger.Info("stopped")
	return serveErr
}
