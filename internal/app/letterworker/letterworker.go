// Package letterworker — фоновый процесс: генерирует письма из очереди
// letters.generate, сбрасывает зависшие генерации и закрывает истёкшие подписки.
package letterworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/legal-letters/internal/config"
	"github.com/magabrotheeeer/legal-letters/internal/contentgen"
	"github.com/magabrotheeeer/legal-letters/internal/dispatch"
	"github.com/magabrotheeeer/legal-letters/internal/docrender"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/metrics"
	"github.com/magabrotheeeer/legal-letters/internal/rabbitmq"
	"github.com/magabrotheeeer/legal-letters/internal/services/letters"
	"github.com/magabrotheeeer/legal-letters/internal/services/scheduler"
	"github.com/magabrotheeeer/legal-letters/internal/storage/repository"
	"github.com/magabrotheeeer/legal-letters/internal/telemetry"
)

// ServiceName — имя сервиса в gRPC health.
const ServiceName = "letter-worker"

var ErrNotConfigured = errors.New("letter-worker requires DATABASE_URL and RABBITMQ_URL")

// Generator выполняет задачу генерации письма.
type Generator interface {
	Generate(ctx context.Context, letterID string) error
}

// App представляет приложение воркера.
type App struct {
	engine           *letters.Engine
	schedulerService *scheduler.SchedulerService
	cfg              *config.Config

	db   *repository.Storage
	conn *amqp.Connection
	ch   *amqp.Channel

	grpcServer    *grpc.Server
	healthServer  *health.Server
	listener      net.Listener
	metricsServer *http.Server

	tel    *telemetry.Telemetry
	flush  func()
	logger *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New создает новый экземпляр воркера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.DatabaseURL == "" || cfg.RabbitMQURL == "" {
		return nil, ErrNotConfigured
	}
	a := &App{cfg: cfg, logger: logger}

	tel, err := telemetry.New(ctx, cfg.Telemetry, cfg.Env)
	if err != nil {
		return nil, err
	}
	a.tel = tel
	if a.flush, err = telemetry.InitSentry(cfg.Telemetry, cfg.Env); err != nil {
		logger.Warn("sentry disabled", sl.Err(err))
	}

	a.db, err = repository.New(cfg.DatabaseURL)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, a.db); err != nil {
		a.closeResources()
		return nil, err
	}

	a.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	a.ch, err = rabbitmq.SetupChannel(a.conn, rabbitmq.AllBindings())
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	pub := rabbitmq.NewPublisher(a.ch)

	docs, err := docrender.NewStore(cfg.PDFDir)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	deps := letters.Deps{
		Dispatcher: dispatch.NewAMQPDispatcher(pub),
		Renderer:   docrender.NewPDFRenderer(docs),
		Documents:  docs,
		Notifier:   pub,
		Metrics:    metrics.New(reg),
	}
	if cfg.GenerationEnabled() {
		deps.Generator = contentgen.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	} else {
		logger.Warn("OPENAI_API_KEY is not set, letters will stay requested")
	}
	a.engine = letters.NewEngine(logger, a.db, deps, letters.Config{
		GenerationTimeout: cfg.GenerationTimeout,
		StuckAfter:        cfg.StuckGenerationAfter,
	})
	a.engine.SetErrorReporter(telemetry.CaptureError)
	a.schedulerService = scheduler.NewSchedulerService(a.engine, a.db, logger)

	a.listener, err = net.Listen("tcp", cfg.GRPCHealthAddress)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.grpcServer = grpc.NewServer()
	a.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(a.grpcServer, a.healthServer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.metricsServer = &http.Server{
		Addr:              cfg.AddressHTTP,
		Handler:           mux,
		ReadHeaderTimeout: cfg.TimeoutHTTP,
	}
	return a, nil
}

// GenerationHandler разбирает задачу из очереди и запускает генерацию.
// Неразборчивое сообщение отклоняется без возврата в очередь.
func GenerationHandler(g Generator) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		var task dispatch.Task
		if err := json.Unmarshal(body, &task); err != nil {
			return fmt.Errorf("letterworker.GenerationHandler: %w: %w", rabbitmq.ErrDrop, err)
		}
		if task.LetterID == "" {
			return fmt.Errorf("letterworker.GenerationHandler: %w: empty letter id", rabbitmq.ErrDrop)
		}
		return g.Generate(ctx, task.LetterID)
	}
}

// Run запускает потребителя, планировщик и health-сервер.
func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.QueueGenerate, GenerationHandler(a.engine)); err != nil {
		a.logger.Error("failed to start letters.generate consumer", sl.Err(err))
		a.closeResources()
		return err
	}

	go a.schedulerService.ReapStuckLetters(ctx, a.cfg.ReaperInterval)
	go a.schedulerService.ExpireSubscriptions(ctx, a.cfg.ReaperInterval)

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("gRPC health listening on", slog.String("address", a.listener.Addr().String()))
		errCh <- a.grpcServer.Serve(a.listener)
	}()
	go func() {
		a.logger.Info("metrics listening on", slog.String("address", a.metricsServer.Addr))
		if err := a.metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	a.healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	a.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down letter worker")
	case runErr = <-errCh:
	}

	a.healthServer.Shutdown()
	a.grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to stop metrics server", sl.Err(err))
	}
	a.closeResources()
	return runErr
}

func (a *App) closeResources() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
	if a.listener != nil {
		_ = a.listener.Close()
	}
	if err := a.tel.Shutdown(context.Background()); err != nil {
		a.logger.Error("failed to shutdown telemetry", sl.Err(err))
	}
	if a.flush != nil {
		a.flush()
	}
}
