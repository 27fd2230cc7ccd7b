// Package admin собирает сводки для кабинета администратора.
package admin

import (
	"context"
	"fmt"
	"sort"

	"github.com/magabrotheeeer/legal-letters/internal/models"
)

const (
	recentLettersLimit = 10
	topEmployeesLimit  = 5
)

// Store — операции чтения, нужные сводкам.
type Store interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListEmployees(ctx context.Context) ([]*models.Employee, error)
	ListLetters(ctx context.Context, limit int) ([]*models.Letter, error)
	CountLetters(ctx context.Context) (int, error)
}

// Service отдаёт агрегированные данные администратору.
type Service struct {
	store Store
}

// New создаёт сервис.
func New(store Store) *Service {
	return &Service{store: store}
}

// Dashboard возвращает общие счётчики, последние письма и лучших сотрудников
// по сумме комиссий.
func (s *Service) Dashboard(ctx context.Context) (*models.AdminDashboard, error) {
	const op = "services.admin.Dashboard"

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	total, err := s.store.CountLetters(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	recent, err := s.store.ListLetters(ctx, recentLettersLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	active := 0
	for _, e := range employees {
		if e.IsActive {
			active++
		}
	}
	top := append([]*models.Employee(nil), employees...)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].TotalCommission.GreaterThan(top[j].TotalCommission)
	})
	if len(top) > topEmployeesLimit {
		top = top[:topEmployeesLimit]
	}

	return &models.AdminDashboard{
		TotalUsers:      len(users),
		TotalLetters:    total,
		ActiveEmployees: active,
		RecentLetters:   recent,
		TopEmployees:    top,
	}, nil
}

// Users возвращает всех пользователей.
func (s *Service) Users(ctx context.Context) ([]*models.User, error) {
	const op = "services.admin.Users"
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// Employees возвращает всех сотрудников, включая отключённых.
func (s *Service) Employees(ctx context.Context) ([]*models.Employee, error) {
	const op = "services.admin.Employees"
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return employees, nil
}
