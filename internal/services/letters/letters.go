// Package letters реализует жизненный цикл письма: приём заявки, фоновую
// генерацию со списанием кредита, проверку юристом, отрисовку и скачивание.
package letters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/magabrotheeeer/legal-letters/internal/contentgen"
	"github.com/magabrotheeeer/legal-letters/internal/dispatch"
	"github.com/magabrotheeeer/legal-letters/internal/docrender"
	"github.com/magabrotheeeer/legal-letters/internal/lib/policy"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/metrics"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

var (
	ErrNoCredit             = errors.New("no letter credits remaining")
	ErrGeneratorUnavailable = errors.New("letter generation is not configured")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("letter not found")
	ErrNotReady             = errors.New("letter document is not ready")
	ErrInvalidStatus        = errors.New("invalid letter status for this operation")
)

// Store — операции хранилища, которые использует движок.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetActiveSubscription(ctx context.Context, userID string) (*models.UserSubscription, error)
	CreateLetter(ctx context.Context, l models.Letter) (*models.Letter, error)
	GetLetter(ctx context.Context, id string) (*models.Letter, error)
	ListLettersByUser(ctx context.Context, userID string) ([]*models.Letter, error)
	ListLetters(ctx context.Context, limit int) ([]*models.Letter, error)
	UpdateLetter(ctx context.Context, id string, patch models.LetterPatch) (*models.Letter, error)
	ClaimForGeneration(ctx context.Context, id string) (*models.Letter, error)
	CommitGeneration(ctx context.Context, id string, res models.GenerationResult) (*models.Letter, error)
	ResetGeneration(ctx context.Context, id string) error
	MarkDownloaded(ctx context.Context, id string, at time.Time) (*models.Letter, error)
	ListStuckGenerating(ctx context.Context, before time.Time) ([]*models.Letter, error)
}

// Renderer отрисовывает письмо и возвращает ссылку на документ.
type Renderer interface {
	Render(ctx context.Context, l models.Letter) (string, error)
}

// Documents открывает ранее отрисованные документы.
type Documents interface {
	Open(name string) (*docrender.Document, error)
}

// Notifier публикует события о готовности писем.
type Notifier interface {
	Publish(ctx context.Context, exchange, routingKey string, message any) error
}

// Deps — внешние зависимости движка. Generator и Notifier могут быть nil:
// без генератора приём писем отключён, без Notifier уведомления не отправляются.
type Deps struct {
	Generator  contentgen.Generator
	Dispatcher dispatch.Dispatcher
	Renderer   Renderer
	Documents  Documents
	Notifier   Notifier
	Metrics    *metrics.Metrics
}

// Config — параметры фоновой генерации.
type Config struct {
	GenerationTimeout time.Duration
	StuckAfter        time.Duration
}

// Engine — движок жизненного цикла письма.
type Engine struct {
	log     *slog.Logger
	store   Store
	deps    Deps
	cfg     Config
	tracer  trace.Tracer
	now     func() time.Time
	capture func(ctx context.Context, err error, tags map[string]string)
}

// NewEngine создаёт движок.
func NewEngine(log *slog.Logger, store Store, deps Deps, cfg Config) *Engine {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 90 * time.Second
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = 10 * time.Minute
	}
	return &Engine{
		log:     log,
		store:   store,
		deps:    deps,
		cfg:     cfg,
		tracer:  otel.Tracer("legal-letters/letters"),
		now:     time.Now,
		capture: func(context.Context, error, map[string]string) {},
	}
}

// SetErrorReporter задаёт отправку фоновых ошибок во внешнюю систему.
func (e *Engine) SetErrorReporter(capture func(ctx context.Context, err error, tags map[string]string)) {
	if capture != nil {
		e.capture = capture
	}
}

// GeneratorAvailable сообщает, настроен ли генератор содержимого.
func (e *Engine) GeneratorAvailable() bool {
	return e.deps.Generator != nil
}

// Create принимает заявку на письмо и ставит генерацию в очередь.
// Возвращает письмо сразу, содержимое появится после фоновой генерации.
func (e *Engine) Create(ctx context.Context, actor models.Principal, req models.LetterRequest) (*models.Letter, error) {
	const op = "services.letters.Create"
	if !policy.Allow(actor.Role, policy.ActionCreateLetter) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if !e.GeneratorAvailable() {
		return nil, fmt.Errorf("%s: %w", op, ErrGeneratorUnavailable)
	}

	sub, err := e.creditSubscription(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	letter, err := e.store.CreateLetter(ctx, models.Letter{
		UserID:            actor.UserID,
		SubscriptionID:    sub.ID,
		Title:             req.Title,
		SenderName:        req.SenderName,
		SenderFirmName:    req.SenderFirmName,
		SenderAddress:     req.SenderAddress.WithDefaults(),
		RecipientName:     req.RecipientName,
		RecipientAddress:  req.RecipientAddress.WithDefaults(),
		Subject:           req.Subject,
		Conflict:          req.Conflict,
		DesiredResolution: req.DesiredResolution,
		AdditionalNotes:   req.AdditionalNotes,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.deps.Metrics.LetterCreated()

	if err := e.deps.Dispatcher.Dispatch(ctx, letter.ID); err != nil {
		e.log.Warn("failed to dispatch generation, letter stays requested",
			slog.String("op", op), slog.String("letter_id", letter.ID), sl.Err(err))
	}
	return letter, nil
}

// creditSubscription возвращает активную подписку с ненулевым остатком.
func (e *Engine) creditSubscription(ctx context.Context, userID string) (*models.UserSubscription, error) {
	sub, err := e.store.GetActiveSubscription(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoCredit
	}
	if err != nil {
		return nil, err
	}
	if !sub.HasCredit() {
		return nil, ErrNoCredit
	}
	return sub, nil
}

// Get возвращает письмо владельцу или администратору.
func (e *Engine) Get(ctx context.Context, actor models.Principal, id string) (*models.Letter, error) {
	const op = "services.letters.Get"
	if !policy.Allow(actor.Role, policy.ActionViewLetter) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	l, err := e.getLetter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !policy.CanAccessLetter(actor, l) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	return l, nil
}

// List возвращает все письма для администратора и собственные для остальных.
func (e *Engine) List(ctx context.Context, actor models.Principal) ([]*models.Letter, error) {
	const op = "services.letters.List"
	var (
		list []*models.Letter
		err  error
	)
	if policy.Allow(actor.Role, policy.ActionListAllLetters) {
		list, err = e.store.ListLetters(ctx, 0)
	} else {
		list, err = e.store.ListLettersByUser(ctx, actor.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (e *Engine) getLetter(ctx context.Context, id string) (*models.Letter, error) {
	l, err := e.store.GetLetter(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return l, err
}
