// Package subscription содержит каталог тарифов с кешированием, просмотр
// текущей подписки и ручную корректировку счётчиков писем.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

const activePlansKey = "plans:active"

var (
	ErrNotFound          = errors.New("subscription not found")
	ErrInvalidCorrection = errors.New("correction would make a counter negative")
	ErrPlanExists        = errors.New("plan already exists")
)

// Store определяет методы хранилища для тарифов и подписок.
type Store interface {
	ListPlans(ctx context.Context, activeOnly bool) ([]*models.SubscriptionPlan, error)
	CreatePlan(ctx context.Context, p models.SubscriptionPlan) (*models.SubscriptionPlan, error)
	GetActiveSubscription(ctx context.Context, userID string) (*models.UserSubscription, error)
	ApplyCreditDelta(ctx context.Context, subID string, remainingDelta, usedDelta int) (*models.UserSubscription, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// Service реализует логику работы с тарифами и подписками, включая кеширование.
type Service struct {
	store    Store
	cache    Cache
	log      *slog.Logger
	plansTTL time.Duration
}

// NewSubscriptionService создает новый экземпляр Service.
func NewSubscriptionService(store Store, cache Cache, log *slog.Logger, plansTTL time.Duration) *Service {
	if plansTTL <= 0 {
		plansTTL = 10 * time.Minute
	}
	return &Service{
		store:    store,
		cache:    cache,
		log:      log,
		plansTTL: plansTTL,
	}
}

// ListPlans возвращает активные тарифы, используя кеш или хранилище.
// Ошибки кеша не мешают ответу.
func (s *Service) ListPlans(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	const op = "services.subscription.ListPlans"
	log := s.log.With(slog.String("op", op))

	var cached []*models.SubscriptionPlan
	found, err := s.cache.Get(ctx, activePlansKey, &cached)
	if err != nil {
		log.Warn("failed to read plans from cache", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	plans, err := s.store.ListPlans(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, activePlansKey, plans, s.plansTTL); err != nil {
		log.Warn("failed to cache plans", sl.Err(err))
	}
	return plans, nil
}

// CreatePlan добавляет тариф и сбрасывает кеш каталога.
// Существующие тарифы не меняются: новая цена оформляется новым тарифом.
func (s *Service) CreatePlan(ctx context.Context, p models.SubscriptionPlan) (*models.SubscriptionPlan, error) {
	const op = "services.subscription.CreatePlan"

	created, err := s.store.CreatePlan(ctx, p)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil, fmt.Errorf("%s: %w", op, ErrPlanExists)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(ctx, activePlansKey); err != nil {
		s.log.Warn("failed to invalidate plans cache", slog.String("op", op), sl.Err(err))
	}
	s.log.Info("created plan", slog.String("op", op), slog.String("plan_id", created.ID))
	return created, nil
}

// Current возвращает активную подписку пользователя или nil, если её нет.
func (s *Service) Current(ctx context.Context, userID string) (*models.UserSubscription, error) {
	const op = "services.subscription.Current"

	sub, err := s.store.GetActiveSubscription(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// CorrectCredits применяет ручную корректировку администратора относительными
// приращениями. Счётчики не могут стать отрицательными.
func (s *Service) CorrectCredits(ctx context.Context, adminID, subID string, c models.CreditCorrection) (*models.UserSubscription, error) {
	const op = "services.subscription.CorrectCredits"

	sub, err := s.store.ApplyCreditDelta(ctx, subID, c.RemainingDelta, c.UsedDelta)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, storage.ErrNoCredit):
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCorrection)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("credits corrected",
		slog.String("op", op),
		slog.String("subscription_id", subID),
		slog.String("admin_id", adminID),
		slog.Int("remaining_delta", c.RemainingDelta),
		slog.Int("used_delta", c.UsedDelta),
		slog.String("reason", c.Reason),
	)
	return sub, nil
}
