// Package scheduler запускает периодические задачи воркера: возврат
// зависших генераций и закрытие истёкших подписок.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
)

// Reaper возвращает в очередь письма, зависшие в generating.
type Reaper interface {
	ReapStuck(ctx context.Context) (int, error)
}

// SubscriptionRepository закрывает подписки с истёкшим сроком.
type SubscriptionRepository interface {
	ExpireSubscriptions(ctx context.Context, now time.Time) (int, error)
}

type SchedulerService struct {
	reaper Reaper
	repo   SubscriptionRepository
	log    *slog.Logger
	now    func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(reaper Reaper, repo SubscriptionRepository, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		reaper: reaper,
		repo:   repo,
		log:    log,
		now:    time.Now,
	}
}

// ReapStuckLetters выполняет проход сразу и затем по таймеру до отмены ctx.
func (s *SchedulerService) ReapStuckLetters(ctx context.Context, interval time.Duration) {
	every(ctx, interval, s.runReapStuckLetters)
}

// ExpireSubscriptions выполняет проход сразу и затем по таймеру до отмены ctx.
func (s *SchedulerService) ExpireSubscriptions(ctx context.Context, interval time.Duration) {
	every(ctx, interval, s.runExpireSubscriptions)
}

func every(ctx context.Context, interval time.Duration, run func(context.Context)) {
	run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

func (s *SchedulerService) runReapStuckLetters(ctx context.Context) {
	n, err := s.reaper.ReapStuck(ctx)
	if err != nil {
		s.log.Error("failed to reap stuck letters", sl.Err(err))
		return
	}
	if n == 0 {
		s.log.Debug("no stuck letters found")
		return
	}
	s.log.Info("requeued stuck letters", "count", n)
}

func (s *SchedulerService) runExpireSubscriptions(ctx context.Context) {
	n, err := s.repo.ExpireSubscriptions(ctx, s.now())
	if err != nil {
		s.log.Error("failed to expire subscriptions", sl.Err(err))
		return
	}
	if n == 0 {
		s.log.Debug("no expired subscriptions found")
		return
	}
	s.log.Info("expired subscriptions", "count", n)
}
