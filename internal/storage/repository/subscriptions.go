package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

const subscriptionColumns = `id, user_id, plan_id, status, letters_remaining, letters_used, discount_code,
	original_price, discount_amount, final_price, payment_ref, started_at, expires_at, created_at`

func scanSubscription(row rowScanner) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	var status string
	var expires sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &status, &sub.LettersRemaining, &sub.LettersUsed,
		&sub.DiscountCode, &sub.OriginalPrice, &sub.DiscountAmount, &sub.FinalPrice, &sub.PaymentRef,
		&sub.StartedAt, &expires, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatus(status)
	sub.ExpiresAt = timePtr(expires)
	return &sub, nil
}

// GetActiveSubscription возвращает единственную активную подписку пользователя.
func (s *Storage) GetActiveSubscription(ctx context.Context, userID string) (*models.UserSubscription, error) {
	const op = "storage.GetActiveSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE user_id = $1 AND status = 'active'`, userID))
	if err != nil {
		return nil, mapError(op, err)
	}
	return sub, nil
}

// GetSubscription возвращает подписку по ID.
func (s *Storage) GetSubscription(ctx context.Context, id string) (*models.UserSubscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return sub, nil
}

// ApplyCreditDelta изменяет счётчики относительно текущих значений одним
// условным UPDATE. Если счётчик ушёл бы в минус, возвращает ErrNoCredit.
func (s *Storage) ApplyCreditDelta(ctx context.Context, subID string, remainingDelta, usedDelta int) (*models.UserSubscription, error) {
	const op = "storage.ApplyCreditDelta"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, `UPDATE user_subscriptions
		SET letters_remaining = letters_remaining + $2, letters_used = letters_used + $3
		WHERE id = $1 AND letters_remaining + $2 >= 0 AND letters_used + $3 >= 0
		RETURNING `+subscriptionColumns, subID, remainingDelta, usedDelta))
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, getErr := s.GetSubscription(ctx, subID); getErr != nil {
		return nil, fmt.Errorf("%s: %w", op, getErr)
	}
	return nil, fmt.Errorf("%s: %w", op, storage.ErrNoCredit)
}

// RecordPurchase оформляет покупку одной транзакцией. Строка в
// processed_payment_events делает повторную доставку события безопасной.
func (s *Storage) RecordPurchase(ctx context.Context, p models.Purchase) (*models.UserSubscription, error) {
	const op = "storage.RecordPurchase"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO processed_payment_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`, p.EventID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrEventProcessed)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE user_subscriptions SET status = 'cancelled' WHERE user_id = $1 AND status = 'active'`,
		p.Subscription.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	in := p.Subscription
	sub, err := scanSubscription(tx.QueryRowContext(ctx, `INSERT INTO user_subscriptions
		(user_id, plan_id, status, letters_remaining, letters_used, discount_code, original_price,
		 discount_amount, final_price, payment_ref, started_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+subscriptionColumns,
		in.UserID, in.PlanID, string(in.Status), in.LettersRemaining, in.LettersUsed, in.DiscountCode,
		in.OriginalPrice, in.DiscountAmount, in.FinalPrice, in.PaymentRef, in.StartedAt, in.ExpiresAt))
	if err != nil {
		return nil, mapError(op, err)
	}

	if rec := p.Commission; rec != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO commission_records
			(employee_id, user_subscription_id, user_id, plan_id, final_price, commission_rate, commission_amount, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.EmployeeID, sub.ID, rec.UserID, rec.PlanID, rec.FinalPrice, rec.CommissionRate,
			rec.CommissionAmount, string(rec.Status)); err != nil {
			return nil, mapError(op, err)
		}
		if err := applyEmployeeAward(ctx, tx, rec); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

const commissionColumns = `id, employee_id, user_subscription_id, user_id, plan_id, final_price,
	commission_rate, commission_amount, status, created_at, paid_at`

func scanCommission(row rowScanner) (*models.CommissionRecord, error) {
	var c models.CommissionRecord
	var status string
	var paid sql.NullTime
	if err := row.Scan(&c.ID, &c.EmployeeID, &c.UserSubscriptionID, &c.UserID, &c.PlanID, &c.FinalPrice,
		&c.CommissionRate, &c.CommissionAmount, &status, &c.CreatedAt, &paid); err != nil {
		return nil, err
	}
	c.Status = models.CommissionStatus(status)
	c.PaidAt = timePtr(paid)
	return &c, nil
}

// ListCommissionsByEmployee возвращает комиссии сотрудника, новые первыми.
func (s *Storage) ListCommissionsByEmployee(ctx context.Context, employeeID string) ([]*models.CommissionRecord, error) {
	const op = "storage.ListCommissionsByEmployee"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+commissionColumns+` FROM commission_records
		WHERE employee_id = $1 ORDER BY created_at DESC`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.CommissionRecord
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkCommissionPaid переводит комиссию из pending в paid.
func (s *Storage) MarkCommissionPaid(ctx context.Context, id string, at time.Time) (*models.CommissionRecord, error) {
	const op = "storage.MarkCommissionPaid"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	c, err := scanCommission(s.DB.QueryRowContext(ctx, `UPDATE commission_records
		SET status = 'paid', paid_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+commissionColumns, id, at))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM commission_records WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, mapError(op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
}

// ExpireSubscriptions переводит в expired активные подписки с истёкшим сроком.
func (s *Storage) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.ExpireSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE user_subscriptions SET status = 'expired'
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}
