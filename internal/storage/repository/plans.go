package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/magabrotheeeer/legal-letters/internal/models"
)

const planColumns = `id, name, description, letter_count, price, billing_cycle, features, is_active, created_at`

func scanPlan(row rowScanner) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	var cycle string
	m := pgtype.NewMap()
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.LetterCount, &p.Price, &cycle,
		m.SQLScanner(&p.Features), &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.BillingCycle = models.BillingCycle(cycle)
	return &p, nil
}

// CreatePlan вставляет новый план. Существующие планы не изменяются.
func (s *Storage) CreatePlan(ctx context.Context, p models.SubscriptionPlan) (*models.SubscriptionPlan, error) {
	const op = "storage.CreatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	features := p.Features
	if features == nil {
		features = []string{}
	}
	query := `INSERT INTO subscription_plans (name, description, letter_count, price, billing_cycle, features, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + planColumns
	created, err := scanPlan(s.DB.QueryRowContext(ctx, query,
		p.Name, p.Description, p.LetterCount, p.Price, string(p.BillingCycle), features, p.IsActive))
	if err != nil {
		return nil, mapError(op, err)
	}
	return created, nil
}

// GetPlan возвращает план по ID.
func (s *Storage) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	const op = "storage.GetPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanPlan(s.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// ListPlans возвращает планы по возрастанию цены.
func (s *Storage) ListPlans(ctx context.Context, activeOnly bool) ([]*models.SubscriptionPlan, error) {
	const op = "storage.ListPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+planColumns+` FROM subscription_plans
		WHERE (NOT $1::boolean OR is_active)
		ORDER BY price, letter_count`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
