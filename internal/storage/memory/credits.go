package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

func (s *Storage) activeSubscriptionLocked(userID string) (models.UserSubscription, bool) {
	for _, sub := range s.subscriptions {
		if sub.UserID == userID && sub.Status == models.SubscriptionActive {
			return sub, true
		}
	}
	return models.UserSubscription{}, false
}

// GetActiveSubscription возвращает единственную активную подписку пользователя.
func (s *Storage) GetActiveSubscription(ctx context.Context, userID string) (*models.UserSubscription, error) {
	const op = "storage.memory.GetActiveSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.activeSubscriptionLocked(userID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return &sub, nil
}

// GetSubscription возвращает подписку по ID.
func (s *Storage) GetSubscription(ctx context.Context, id string) (*models.UserSubscription, error) {
	const op = "storage.memory.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return &sub, nil
}

// ApplyCreditDelta изменяет счётчики подписки относительно текущих значений.
// Если хотя бы один счётчик стал бы отрицательным, ничего не меняется.
func (s *Storage) ApplyCreditDelta(ctx context.Context, subID string, remainingDelta, usedDelta int) (*models.UserSubscription, error) {
	const op = "storage.memory.ApplyCreditDelta"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if sub.LettersRemaining+remainingDelta < 0 || sub.LettersUsed+usedDelta < 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNoCredit)
	}
	sub.LettersRemaining += remainingDelta
	sub.LettersUsed += usedDelta
	s.subscriptions[subID] = sub
	return &sub, nil
}

// RecordPurchase атомарно оформляет покупку: отмечает событие обработанным,
// отменяет прежнюю активную подписку, создаёт новую и, если есть
// реферальное вознаграждение, записывает комиссию и обновляет итоги сотрудника.
func (s *Storage) RecordPurchase(ctx context.Context, p models.Purchase) (*models.UserSubscription, error) {
	const op = "storage.memory.RecordPurchase"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.processedEvents[p.EventID]; done {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrEventProcessed)
	}
	var employee models.Employee
	if p.Commission != nil {
		e, ok := s.employees[p.Commission.EmployeeID]
		if !ok {
			return nil, fmt.Errorf("%s: employee: %w", op, storage.ErrNotFound)
		}
		employee = e
	}

	now := s.now()
	if prev, ok := s.activeSubscriptionLocked(p.Subscription.UserID); ok {
		prev.Status = models.SubscriptionCancelled
		s.subscriptions[prev.ID] = prev
	}

	sub := p.Subscription
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = now
	s.subscriptions[sub.ID] = sub

	if p.Commission != nil {
		rec := *p.Commission
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.UserSubscriptionID = sub.ID
		rec.CreatedAt = now
		s.commissions[rec.ID] = rec

		employee.TotalCommission = employee.TotalCommission.Add(rec.CommissionAmount)
		employee.TotalPoints++
		employee.PerformanceTier = models.TierFor(employee.TotalPoints)
		s.employees[employee.ID] = employee
	}

	s.processedEvents[p.EventID] = now
	return &sub, nil
}

// ListCommissionsByEmployee возвращает комиссии сотрудника, новые первыми.
func (s *Storage) ListCommissionsByEmployee(ctx context.Context, employeeID string) ([]*models.CommissionRecord, error) {
	const op = "storage.memory.ListCommissionsByEmployee"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*models.CommissionRecord, 0)
	for _, c := range s.commissions {
		if c.EmployeeID == employeeID {
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// MarkCommissionPaid переводит комиссию из pending в paid.
func (s *Storage) MarkCommissionPaid(ctx context.Context, id string, at time.Time) (*models.CommissionRecord, error) {
	const op = "storage.memory.MarkCommissionPaid"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.commissions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if c.Status != models.CommissionPending {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	c.Status = models.CommissionPaid
	c.PaidAt = &at
	s.commissions[id] = c
	return &c, nil
}

// ExpireSubscriptions переводит в expired активные подписки с истёкшим сроком.
func (s *Storage) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.memory.ExpireSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sub := range s.subscriptions {
		if sub.Status != models.SubscriptionActive || sub.ExpiresAt == nil || sub.ExpiresAt.After(now) {
			continue
		}
		sub.Status = models.SubscriptionExpired
		s.subscriptions[id] = sub
		n++
	}
	return n, nil
}
