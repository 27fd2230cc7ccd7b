package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/legal-letters/internal/models"
)

const employeeColumns = `id, user_id, employee_code, referral_code, commission_rate, discount_percentage,
	total_commission, total_points, performance_tier, is_active, created_at`

func scanEmployee(row rowScanner) (*models.Employee, error) {
	var e models.Employee
	var tier string
	if err := row.Scan(&e.ID, &e.UserID, &e.EmployeeCode, &e.ReferralCode, &e.CommissionRate,
		&e.DiscountPercentage, &e.TotalCommission, &e.TotalPoints, &tier, &e.IsActive, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.PerformanceTier = models.PerformanceTier(tier)
	return &e, nil
}

// CreateEmployee вставляет сотрудника. Повторный реферальный код даёт ErrAlreadyExists.
func (s *Storage) CreateEmployee(ctx context.Context, e models.Employee) (*models.Employee, error) {
	const op = "storage.CreateEmployee"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO employees (user_id, employee_code, referral_code, commission_rate,
				  discount_percentage, performance_tier, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + employeeColumns
	created, err := scanEmployee(s.DB.QueryRowContext(ctx, query,
		e.UserID, e.EmployeeCode, e.ReferralCode, e.CommissionRate, e.DiscountPercentage,
		string(e.PerformanceTier), e.IsActive))
	if err != nil {
		return nil, mapError(op, err)
	}
	return created, nil
}

func (s *Storage) getEmployeeBy(ctx context.Context, op, column, value string) (*models.Employee, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	e, err := scanEmployee(s.DB.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE `+column+` = $1`, value))
	if err != nil {
		return nil, mapError(op, err)
	}
	return e, nil
}

// GetEmployee возвращает сотрудника по ID.
func (s *Storage) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	return s.getEmployeeBy(ctx, "storage.GetEmployee", "id", id)
}

// GetEmployeeByUserID возвращает сотрудника по ID учётной записи.
func (s *Storage) GetEmployeeByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	return s.getEmployeeBy(ctx, "storage.GetEmployeeByUserID", "user_id", userID)
}

// GetEmployeeByReferralCode ищет сотрудника по реферальному коду.
func (s *Storage) GetEmployeeByReferralCode(ctx context.Context, code string) (*models.Employee, error) {
	return s.getEmployeeBy(ctx, "storage.GetEmployeeByReferralCode", "referral_code", code)
}

// ListEmployees возвращает сотрудников по убыванию накопленной комиссии.
func (s *Storage) ListEmployees(ctx context.Context) ([]*models.Employee, error) {
	const op = "storage.ListEmployees"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY total_commission DESC, created_at`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SetEmployeeActive включает или выключает реферальный код сотрудника.
func (s *Storage) SetEmployeeActive(ctx context.Context, id string, active bool) (*models.Employee, error) {
	const op = "storage.SetEmployeeActive"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	e, err := scanEmployee(s.DB.QueryRowContext(ctx,
		`UPDATE employees SET is_active = $2 WHERE id = $1 RETURNING `+employeeColumns, id, active))
	if err != nil {
		return nil, mapError(op, err)
	}
	return e, nil
}

// applyEmployeeAward увеличивает итоги сотрудника относительным обновлением
// и пересчитывает уровень. Вызывается внутри транзакции покупки.
func applyEmployeeAward(ctx context.Context, tx execQuerier, rec *models.CommissionRecord) error {
	var points int
	err := tx.QueryRowContext(ctx, `UPDATE employees
		SET total_commission = total_commission + $2, total_points = total_points + 1
		WHERE id = $1
		RETURNING total_points`, rec.EmployeeID, rec.CommissionAmount).Scan(&points)
	if err != nil {
		return mapError("storage.applyEmployeeAward", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE employees SET performance_tier = $2 WHERE id = $1`,
		rec.EmployeeID, string(models.TierFor(points))); err != nil {
		return fmt.Errorf("storage.applyEmployeeAward: %w", err)
	}
	return nil
}

