package letterservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/legal-letters/internal/cache"
	"github.com/magabrotheeeer/legal-letters/internal/config"
	"github.com/magabrotheeeer/legal-letters/internal/contentgen"
	"github.com/magabrotheeeer/legal-letters/internal/dispatch"
	"github.com/magabrotheeeer/legal-letters/internal/docrender"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/health"
	"github.com/magabrotheeeer/legal-letters/internal/lib/jwt"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/metrics"
	"github.com/magabrotheeeer/legal-letters/internal/migrations"
	"github.com/magabrotheeeer/legal-letters/internal/paymentprovider"
	"github.com/magabrotheeeer/legal-letters/internal/rabbitmq"
	adminservice "github.com/magabrotheeeer/legal-letters/internal/services/admin"
	authservice "github.com/magabrotheeeer/legal-letters/internal/services/auth"
	"github.com/magabrotheeeer/legal-letters/internal/services/commission"
	"github.com/magabrotheeeer/legal-letters/internal/services/letters"
	"github.com/magabrotheeeer/legal-letters/internal/services/scheduler"
	subservice "github.com/magabrotheeeer/legal-letters/internal/services/subscription"
	"github.com/magabrotheeeer/legal-letters/internal/storage/memory"
	"github.com/magabrotheeeer/legal-letters/internal/storage/repository"
	"github.com/magabrotheeeer/legal-letters/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

// ErrBrokerWithoutDatabase — задачи ушли бы в RabbitMQ, а letter-worker без
// общей базы их не увидит.
var ErrBrokerWithoutDatabase = errors.New("RABBITMQ_URL requires DATABASE_URL")

// Store — все операции хранилища, которые нужны сервисам процесса.
// Реализуется repository.Storage и memory.Storage.
type Store interface {
	authservice.Store
	letters.Store
	commission.Store
	subservice.Store
	adminservice.Store
	scheduler.SubscriptionRepository
}

type App struct {
	server *http.Server
	logger *slog.Logger

	engine    *letters.Engine
	scheduler *scheduler.SchedulerService
	cfg       *config.Config

	// Пул генерации внутри процесса; nil, если задачи уходят в RabbitMQ.
	pool       *dispatch.Pool
	cancelPool context.CancelFunc

	closers []func() error
	tel     *telemetry.Telemetry
	flush   func()
}

// New собирает приложение. Без DATABASE_URL используется хранилище в памяти,
// без RABBITMQ_URL генерация выполняется пулом горутин.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL != "" && cfg.DatabaseURL == "" {
		return nil, ErrBrokerWithoutDatabase
	}
	a := &App{logger: logger, cfg: cfg}

	tel, err := telemetry.New(ctx, cfg.Telemetry, cfg.Env)
	if err != nil {
		return nil, err
	}
	a.tel = tel
	flush, err := telemetry.InitSentry(cfg.Telemetry, cfg.Env)
	if err != nil {
		logger.Warn("sentry disabled", sl.Err(err))
	}
	a.flush = flush

	store, pinger, err := a.openStore(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	var plansCache subservice.Cache = cache.Noop{}
	if cfg.AddressRedis != "" {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, redisCache.Close)
		plansCache = redisCache
	}

	docs, err := docrender.NewStore(cfg.PDFDir)
	if err != nil {
		a.close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps := letters.Deps{
		Renderer:  docrender.NewPDFRenderer(docs),
		Documents: docs,
		Metrics:   m,
	}
	if cfg.GenerationEnabled() {
		deps.Generator = contentgen.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	} else {
		logger.Warn("OPENAI_API_KEY is not set, letter creation is disabled")
	}

	// Движок и пул ссылаются друг на друга: пул вызывает Generate через замыкание.
	var engine *letters.Engine
	if cfg.RabbitMQURL != "" {
		pub, err := a.openBroker(cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		deps.Dispatcher = dispatch.NewAMQPDispatcher(pub)
		deps.Notifier = pub
	} else {
		a.pool = dispatch.NewPool(logger, cfg.GenerationWorkers, cfg.GenerationWorkers*16, func(ctx context.Context, letterID string) error {
			return engine.Generate(ctx, letterID)
		})
		deps.Dispatcher = a.pool
	}

	engine = letters.NewEngine(logger, store, deps, letters.Config{
		GenerationTimeout: cfg.GenerationTimeout,
		StuckAfter:        cfg.StuckGenerationAfter,
	})
	engine.SetErrorReporter(telemetry.CaptureError)
	a.engine = engine

	commissionService := commission.New(logger, store, m)

	services := Services{
		Auth:         authservice.NewAuthService(store, jwt.NewJWTMaker(cfg.SessionSecret, cfg.TokenTTL)),
		Letters:      engine,
		Commission:   commissionService,
		Subscription: subservice.NewSubscriptionService(store, plansCache, logger, cfg.PlansTTL),
		Admin:        adminservice.New(store),
		DB:           pinger,
		Metrics:      m,
		Gatherer:     reg,
	}
	if cfg.PaymentsEnabled() {
		provider := paymentprovider.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
		services.Provider = provider
		services.Parser = provider
	} else {
		logger.Warn("STRIPE_SECRET_KEY or STRIPE_WEBHOOK_SECRET is not set, payments are disabled")
	}

	if a.pool != nil {
		a.scheduler = scheduler.NewSchedulerService(engine, store, logger)
	}

	router := chi.NewRouter()
	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	RegisterRoutes(router, logger, services, sentryHandler.Handle)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// openStore подключает PostgreSQL и применяет миграции либо возвращает хранилище в памяти.
func (a *App) openStore(cfg *config.Config) (Store, health.Pinger, error) {
	const op = "letterservice.openStore"
	if cfg.DatabaseURL == "" {
		a.logger.Warn("DATABASE_URL is not set, using in-memory storage")
		return memory.NewSeeded(), nil, nil
	}

	db, err := repository.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	a.closers = append(a.closers, db.Close)
	if err := migrations.Run(db.DB, cfg.MigrationsDir); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, db.DB, nil
}

// openBroker объявляет топологию и возвращает издателя задач и уведомлений.
func (a *App) openBroker(cfg *config.Config) (*rabbitmq.Publisher, error) {
	const op = "letterservice.openBroker"
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AllBindings())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.closers = append(a.closers, closeAMQP(ch, conn))
	return rabbitmq.NewPublisher(ch), nil
}

func closeAMQP(ch *amqp.Channel, conn *amqp.Connection) func() error {
	return func() error {
		return errors.Join(ch.Close(), conn.Close())
	}
}

func (a *App) Run(ctx context.Context) error {
	if a.pool != nil {
		poolCtx, cancel := context.WithCancel(context.Background())
		a.cancelPool = cancel
		a.pool.Run(poolCtx)
		go a.scheduler.ReapStuckLetters(ctx, a.cfg.ReaperInterval)
		go a.scheduler.ExpireSubscriptions(ctx, a.cfg.ReaperInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		a.logger.Info("shutting down HTTP server gracefully")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if runErr == nil {
		runErr = a.server.Shutdown(timeoutCtx)
	}
	a.drainPool(timeoutCtx)
	a.close()
	return runErr
}

// drainPool ждёт принятые задачи генерации до истечения ctx, затем отменяет оставшиеся.
func (a *App) drainPool(ctx context.Context) {
	if a.pool == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		a.pool.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("generation pool did not drain in time, cancelling tasks")
		a.cancelPool()
		<-done
	}
	a.cancelPool()
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
	if err := a.tel.Shutdown(context.Background()); err != nil {
		a.logger.Error("failed to shutdown telemetry", sl.Err(err))
	}
	if a.flush != nil {
		a.flush()
	}
}
