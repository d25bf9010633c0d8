// Package app собирает сервис продаж: хранилище, прикладные сервисы, HTTP API,
// gRPC health, метрики и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/salescore/internal/health"
	"github.com/vladislavdragonenkov/salescore/internal/metrics"
	"github.com/vladislavdragonenkov/salescore/internal/service/catalog"
	"github.com/vladislavdragonenkov/salescore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/salescore/internal/service/integrity"
	"github.com/vladislavdragonenkov/salescore/internal/service/outbox"
	"github.com/vladislavdragonenkov/salescore/internal/service/promotion"
	"github.com/vladislavdragonenkov/salescore/internal/service/reporting"
	"github.com/vladislavdragonenkov/salescore/internal/service/rest"
	"github.com/vladislavdragonenkov/salescore/internal/service/sales"
	"github.com/vladislavdragonenkov/salescore/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает сервис и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if deps.closeFn != nil {
		defer func() {
			if err := deps.closeFn(); err != nil {
				logger.WithError(err).Warn("failed to close storage")
			}
		}()
	}

	producer, _ := initKafkaProducer(cfg.Brokers(), logger)
	defer closeKafka(producer, logger)

	metrics.RegisterBuildInfo(nil, version.Current().Labels())
	salesMetrics := metrics.NewSalesMetrics()
	promoEngine := promotion.NewEngine(logger.WithField("component", "promotion-engine"))
	handler := rest.NewHandler(rest.Services{
		Sales: sales.NewEngine(deps.uow,
			sales.WithLogger(logger.WithField("component", "sales-engine")),
			sales.WithMetrics(salesMetrics),
			sales.WithPromotionEngine(promoEngine),
		),
		Guard: integrity.NewGuard(deps.uow,
			integrity.WithLogger(logger.WithField("component", "integrity-guard")),
			integrity.WithMetrics(salesMetrics),
		),
		Reports: reporting.NewEngine(deps.uow,
			reporting.WithLogger(logger.WithField("component", "reporting")),
			reporting.WithMetrics(salesMetrics),
		),
		Catalog:     catalog.NewService(deps.uow, catalog.WithLogger(logger.WithField("component", "catalog"))),
		Idempotency: deps.idempotencyRepo,
	}, rest.WithLogger(logger.WithField("layer", "http")), rest.WithIdempotencyTTL(cfg.IdempotencyTTL))

	gin.SetMode(gin.ReleaseMode)
	router := rest.NewRouter(handler, metrics.NewHTTPMetrics(nil))

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.Register("storage", deps.storageChecker, true)
	healthHandler.Register("outbox", healthcheck.NewOutboxBacklogChecker(deps.outboxRepo, cfg.OutboxMaxPending), false)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	publisher, dlq := newOutboxPublishers(producer, cfg.KafkaTopic, logger)
	outboxOptions := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(nil)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if dlq != nil {
		outboxOptions = append(outboxOptions, outbox.WithDLQPublisher(dlq))
	}
	outboxWorker := outbox.NewWorker(deps.outboxRepo, publisher, outboxOptions...)
	cleanupWorker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithMetrics(metrics.NewCleanupMetrics(nil)),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	for _, run := range []func(context.Context){outboxWorker.Run, cleanupWorker.Run} {
		workers.Add(1)
		go func(run func(context.Context)) {
			defer workers.Done()
			run(workerCtx)
		}(run)
	}
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	grpcServer, healthServer := newGRPCServer(logger)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 2)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Infof("gRPC health слушает %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		shutdownHTTP(httpSrv, logger)
		stopGRPC(grpcServer, healthServer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(httpSrv, logger)
		stopGRPC(grpcServer, healthServer, logger)
		return err
	}
}

// newGRPCServer создаёт gRPC-сервер со стандартным health-сервисом и prometheus-интерсепторами.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcMetrics.InitializeMetrics(server)
	reflection.Register(server)
	return server, healthServer
}

func stopGRPC(server *grpc.Server, healthServer *health.Server, logger *log.Entry) {
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// startMetricsServer запускает HTTP-сервер с /metrics и health-пробами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
