// Package commission обрабатывает подтверждённые оплаты: оформляет подписку,
// начисляет комиссию сотруднику по реферальному коду и считает скидки.
package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/metrics"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
	"github.com/magabrotheeeer/legal-letters/internal/telemetry"
)

var (
	ErrPlanNotFound       = errors.New("plan not found")
	ErrInvalidEvent       = errors.New("payment event is missing user or plan")
	ErrAlreadyProcessed   = errors.New("payment event already processed")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrCommissionNotFound = errors.New("commission not found")
	ErrAlreadyPaid        = errors.New("commission already paid")
)

const yearlyTerm = 365 * 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// Store — операции хранилища, которые использует сервис.
type Store interface {
	GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error)
	GetEmployeeByReferralCode(ctx context.Context, code string) (*models.Employee, error)
	GetEmployeeByUserID(ctx context.Context, userID string) (*models.Employee, error)
	SetEmployeeActive(ctx context.Context, id string, active bool) (*models.Employee, error)
	RecordPurchase(ctx context.Context, p models.Purchase) (*models.UserSubscription, error)
	ListCommissionsByEmployee(ctx context.Context, employeeID string) ([]*models.CommissionRecord, error)
	MarkCommissionPaid(ctx context.Context, id string, at time.Time) (*models.CommissionRecord, error)
}

// Service — движок комиссий.
type Service struct {
	log     *slog.Logger
	store   Store
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// New создаёт сервис комиссий. m может быть nil.
func New(log *slog.Logger, store Store, m *metrics.Metrics) *Service {
	return &Service{
		log:     log,
		store:   store,
		metrics: m,
		tracer:  otel.Tracer("legal-letters/commission"),
		now:     time.Now,
	}
}

// Quote считает цену плана с учётом скидки сотрудника. Неизвестный или
// неактивный код скидку не даёт.
func (s *Service) Quote(ctx context.Context, planID, referralCode string) (models.Quote, error) {
	const op = "services.commission.Quote"

	plan, err := s.plan(ctx, planID)
	if err != nil {
		return models.Quote{}, fmt.Errorf("%s: %w", op, err)
	}
	if !plan.IsActive {
		return models.Quote{}, fmt.Errorf("%s: %w", op, ErrPlanNotFound)
	}

	q := models.Quote{
		PlanID:         plan.ID,
		OriginalPrice:  plan.Price,
		DiscountAmount: decimal.Zero,
		FinalPrice:     plan.Price,
	}
	code := strings.TrimSpace(referralCode)
	if code == "" {
		return q, nil
	}

	emp, err := s.activeEmployee(ctx, code)
	if err != nil {
		return models.Quote{}, fmt.Errorf("%s: %w", op, err)
	}
	if emp == nil || emp.DiscountPercentage <= 0 {
		return q, nil
	}
	q.DiscountCode = code
	q.DiscountAmount = plan.Price.Mul(decimal.NewFromInt(int64(emp.DiscountPercentage))).Div(hundred).Round(2)
	q.FinalPrice = plan.Price.Sub(q.DiscountAmount)
	return q, nil
}

// ProcessPayment оформляет подписку по подтверждённой оплате и, если указан
// действующий реферальный код, начисляет комиссию. Всё записывается одной
// транзакцией; повторная доставка события возвращает ErrAlreadyProcessed.
func (s *Service) ProcessPayment(ctx context.Context, ev models.PaymentEvent) (sub *models.UserSubscription, err error) {
	const op = "services.commission.ProcessPayment"
	log := s.log.With(slog.String("op", op), slog.String("event_id", ev.EventID))

	ctx, span := s.tracer.Start(ctx, "commission.ProcessPayment")
	span.SetAttributes(attribute.String("payment.event_id", ev.EventID), attribute.String("plan.id", ev.PlanID))
	defer func() {
		if errors.Is(err, ErrAlreadyProcessed) {
			telemetry.EndSpan(span, nil)
			return
		}
		telemetry.EndSpan(span, err)
	}()

	if ev.EventID == "" || ev.UserID == "" || ev.PlanID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEvent)
	}
	plan, err := s.plan(ctx, ev.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	subscription := models.UserSubscription{
		UserID:           ev.UserID,
		PlanID:           plan.ID,
		Status:           models.SubscriptionActive,
		LettersRemaining: plan.LetterCount,
		LettersUsed:      0,
		DiscountCode:     ev.DiscountCode,
		OriginalPrice:    ev.OriginalPrice,
		DiscountAmount:   ev.DiscountAmount,
		FinalPrice:       ev.FinalPrice,
		PaymentRef:       ev.PaymentRef,
		StartedAt:        now,
	}
	if subscription.OriginalPrice.IsZero() && subscription.FinalPrice.IsZero() {
		subscription.OriginalPrice = plan.Price
		subscription.FinalPrice = plan.Price
	}
	if plan.BillingCycle == models.BillingYearly {
		expires := now.Add(yearlyTerm)
		subscription.ExpiresAt = &expires
	}

	purchase := models.Purchase{EventID: ev.EventID, Subscription: subscription}
	if code := strings.TrimSpace(ev.DiscountCode); code != "" {
		emp, err := s.activeEmployee(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if emp != nil {
			purchase.Commission = Award(emp, ev.UserID, plan.ID, subscription.FinalPrice)
		} else {
			log.Info("referral code did not resolve to an active employee", slog.String("code", code))
		}
	}

	sub, err = s.store.RecordPurchase(ctx, purchase)
	if errors.Is(err, storage.ErrEventProcessed) {
		log.Info("payment event already processed")
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyProcessed)
	}
	if err != nil {
		log.Error("failed to record purchase", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if purchase.Commission != nil {
		s.metrics.CommissionAwarded()
		log.Info("commission awarded",
			slog.String("employee_id", purchase.Commission.EmployeeID),
			slog.String("amount", purchase.Commission.CommissionAmount.StringFixed(2)))
	}
	log.Info("subscription activated", slog.String("subscription_id", sub.ID), slog.Int("letters", sub.LettersRemaining))
	return sub, nil
}

// Award строит запись о комиссии: final price × ставка сотрудника,
// округление до центов, ставка сохраняется как снимок.
func Award(emp *models.Employee, userID, planID string, finalPrice decimal.Decimal) *models.CommissionRecord {
	return &models.CommissionRecord{
		EmployeeID:       emp.ID,
		UserID:           userID,
		PlanID:           planID,
		FinalPrice:       finalPrice,
		CommissionRate:   emp.CommissionRate,
		CommissionAmount: finalPrice.Mul(emp.CommissionRate).Round(2),
		Status:           models.CommissionPending,
	}
}

// EmployeeDashboard возвращает профиль сотрудника и его комиссии.
func (s *Service) EmployeeDashboard(ctx context.Context, userID string) (*models.EmployeeDashboard, error) {
	const op = "services.commission.EmployeeDashboard"

	emp, err := s.store.GetEmployeeByUserID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrEmployeeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	recs, err := s.store.ListCommissionsByEmployee(ctx, emp.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.EmployeeDashboard{Employee: emp, Commissions: recs}, nil
}

// MarkPaid переводит комиссию в paid.
func (s *Service) MarkPaid(ctx context.Context, commissionID string) (*models.CommissionRecord, error) {
	const op = "services.commission.MarkPaid"

	rec, err := s.store.MarkCommissionPaid(ctx, commissionID, s.now())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, ErrCommissionNotFound)
	case errors.Is(err, storage.ErrConflict):
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyPaid)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// SetEmployeeActive включает или отключает сотрудника. Отключённый код
// перестаёт давать скидку и комиссию.
func (s *Service) SetEmployeeActive(ctx context.Context, employeeID string, active bool) (*models.Employee, error) {
	const op = "services.commission.SetEmployeeActive"

	emp, err := s.store.SetEmployeeActive(ctx, employeeID, active)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrEmployeeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return emp, nil
}

func (s *Service) plan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	plan, err := s.store.GetPlan(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrPlanNotFound
	}
	return plan, err
}

// activeEmployee возвращает сотрудника по коду или nil, если код не действует.
func (s *Service) activeEmployee(ctx context.Context, code string) (*models.Employee, error) {
	emp, err := s.store.GetEmployeeByReferralCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !emp.IsActive {
		return nil, nil
	}
	return emp, nil
}
