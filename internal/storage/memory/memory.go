// Package memory реализует хранилище в памяти процесса. Используется, когда
// не задан DATABASE_URL, и в тестах бизнес-логики. Все операции, которые в
// PostgreSQL выполняются одной транзакцией, здесь выполняются под одной блокировкой.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

// Storage — потокобезопасное хранилище в памяти.
type Storage struct {
	mu              sync.Mutex
	now             func() time.Time
	users           map[string]models.User
	employees       map[string]models.Employee
	plans           map[string]models.SubscriptionPlan
	subscriptions   map[string]models.UserSubscription
	letters         map[string]models.Letter
	commissions     map[string]models.CommissionRecord
	processedEvents map[string]time.Time
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		now:             time.Now,
		users:           make(map[string]models.User),
		employees:       make(map[string]models.Employee),
		plans:           make(map[string]models.SubscriptionPlan),
		subscriptions:   make(map[string]models.UserSubscription),
		letters:         make(map[string]models.Letter),
		commissions:     make(map[string]models.CommissionRecord),
		processedEvents: make(map[string]time.Time),
	}
}

// NewSeeded создаёт хранилище с планами по умолчанию.
func NewSeeded() *Storage {
	s := New()
	for _, p := range DefaultPlans() {
		s.plans[p.ID] = p
	}
	return s
}

// DefaultPlans возвращает каталог, с которым запускается сервис.
// Совпадает с сид-миграцией PostgreSQL.
func DefaultPlans() []models.SubscriptionPlan {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.SubscriptionPlan{
		{
			ID:           "11111111-1111-1111-1111-111111111111",
			Name:         "Single Letter",
			Description:  "Perfect for one-time legal needs",
			LetterCount:  1,
			Price:        decimal.RequireFromString("299.00"),
			BillingCycle: models.BillingOneTime,
			Features:     []string{"1 professional legal letter", "Attorney review", "PDF download"},
			IsActive:     true,
			CreatedAt:    created,
		},
		{
			ID:           "22222222-2222-2222-2222-222222222222",
			Name:         "Monthly Plan",
			Description:  "4 letters per month, billed yearly",
			LetterCount:  48,
			Price:        decimal.RequireFromString("299.00"),
			BillingCycle: models.BillingYearly,
			Features:     []string{"48 letters per year", "Attorney review", "PDF download", "Priority support"},
			IsActive:     true,
			CreatedAt:    created,
		},
		{
			ID:           "33333333-3333-3333-3333-333333333333",
			Name:         "Premium Plan",
			Description:  "8 letters per month, billed yearly",
			LetterCount:  96,
			Price:        decimal.RequireFromString("599.00"),
			BillingCycle: models.BillingYearly,
			Features:     []string{"96 letters per year", "Attorney review", "PDF download", "Dedicated support"},
			IsActive:     true,
			CreatedAt:    created,
		},
	}
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

// CreateUser сохраняет пользователя. Email уникален без учёта регистра.
func (s *Storage) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	const op = "storage.memory.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now()
	s.users[u.ID] = u
	return &u, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.memory.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return &u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

// ListUsers возвращает всех пользователей, новые первыми.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.memory.ListUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, &u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// CreateEmployee сохраняет сотрудника. Реферальный код уникален.
func (s *Storage) CreateEmployee(ctx context.Context, e models.Employee) (*models.Employee, error) {
	const op = "storage.memory.CreateEmployee"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.employees {
		if existing.ReferralCode == e.ReferralCode || existing.UserID == e.UserID {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = s.now()
	s.employees[e.ID] = e
	return &e, nil
}

// GetEmployee возвращает сотрудника по ID.
func (s *Storage) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	const op = "storage.memory.GetEmployee"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return &e, nil
}

// GetEmployeeByUserID возвращает сотрудника, связанного с учётной записью.
func (s *Storage) GetEmployeeByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	const op = "storage.memory.GetEmployeeByUserID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.employees {
		if e.UserID == userID {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

// GetEmployeeByReferralCode ищет сотрудника по реферальному коду.
func (s *Storage) GetEmployeeByReferralCode(ctx context.Context, code string) (*models.Employee, error) {
	const op = "storage.memory.GetEmployeeByReferralCode"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.employees {
		if e.ReferralCode == code {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

// ListEmployees возвращает сотрудников по убыванию накопленной комиссии.
func (s *Storage) ListEmployees(ctx context.Context) ([]*models.Employee, error) {
	const op = "storage.memory.ListEmployees"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*models.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		result = append(result, &e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TotalCommission.GreaterThan(result[j].TotalCommission)
	})
	return result, nil
}

// SetEmployeeActive включает или выключает реферальный код сотрудника.
func (s *Storage) SetEmployeeActive(ctx context.Context, id string, active bool) (*models.Employee, error) {
	const op = "storage.memory.SetEmployeeActive"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	e.IsActive = active
	s.employees[id] = e
	return &e, nil
}

// CreatePlan сохраняет новый план.
func (s *Storage) CreatePlan(ctx context.Context, p models.SubscriptionPlan) (*models.SubscriptionPlan, error) {
	const op = "storage.memory.CreatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := s.plans[p.ID]; ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	p.CreatedAt = s.now()
	s.plans[p.ID] = p
	return &p, nil
}

// GetPlan возвращает план по ID.
func (s *Storage) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	const op = "storage.memory.GetPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return &p, nil
}

// ListPlans возвращает планы по возрастанию цены.
func (s *Storage) ListPlans(ctx context.Context, activeOnly bool) ([]*models.SubscriptionPlan, error) {
	const op = "storage.memory.ListPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*models.SubscriptionPlan, 0, len(s.plans))
	for _, p := range s.plans {
		if activeOnly && !p.IsActive {
			continue
		}
		result = append(result, &p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Price.Equal(result[j].Price) {
			return result[i].LetterCount < result[j].LetterCount
		}
		return result[i].Price.LessThan(result[j].Price)
	})
	return result, nil
}
