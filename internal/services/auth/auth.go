// Package auth содержит регистрацию, вход и проверку токенов.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/magabrotheeeer/legal-letters/internal/lib/jwt"
	"github.com/magabrotheeeer/legal-letters/internal/lib/password"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidRole        = errors.New("role cannot be self-assigned")
	ErrInvalidToken       = errors.New("invalid token")
)

const referralPrefix = "EMPLOYEE20-"

// maxCodeAttempts ограничивает число попыток подобрать свободный реферальный код.
const maxCodeAttempts = 5

// Store описывает операции хранилища, нужные сервису.
type Store interface {
	CreateUser(ctx context.Context, u models.User) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateEmployee(ctx context.Context, e models.Employee) (*models.Employee, error)
}

// Service отвечает за регистрацию, авторизацию и валидацию JWT.
type Service struct {
	store    Store
	jwtMaker jwt.Maker
}

// NewAuthService создает новый экземпляр Service.
func NewAuthService(store Store, jwtMaker jwt.Maker) *Service {
	return &Service{
		store:    store,
		jwtMaker: jwtMaker,
	}
}

// Signup регистрирует пользователя и сразу выдаёт токен.
// Сотрудник при регистрации получает реферальный код.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (string, *models.User, error) {
	const op = "services.auth.Signup"

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleEmployee {
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return "", nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.store.CreateUser(ctx, models.User{
		Email:        email,
		PasswordHash: hashed,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return "", nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	if role == models.RoleEmployee {
		if _, err := s.createEmployee(ctx, user); err != nil {
			return "", nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

func (s *Service) createEmployee(ctx context.Context, user *models.User) (*models.Employee, error) {
	base := ReferralCode(user.FirstName, user.LastName)
	code := base
	for range maxCodeAttempts {
		e, err := s.store.CreateEmployee(ctx, models.Employee{
			UserID:             user.ID,
			EmployeeCode:       code,
			ReferralCode:       code,
			CommissionRate:     models.DefaultCommissionRate,
			DiscountPercentage: models.DefaultDiscountPercentage,
			PerformanceTier:    models.TierBronze,
			IsActive:           true,
		})
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, storage.ErrAlreadyExists) {
			return nil, err
		}
		code = base + "-" + strings.ToUpper(uuid.NewString()[:4])
	}
	return nil, storage.ErrAlreadyExists
}

// ReferralCode строит код вида EMPLOYEE20-<ИНИЦИАЛЫ>.
func ReferralCode(firstName, lastName string) string {
	var initials strings.Builder
	for _, part := range []string{firstName, lastName} {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		initials.WriteString(strings.ToUpper(string([]rune(part)[0:1])))
	}
	return referralPrefix + initials.String()
}

// Login проверяет пароль пользователя и генерирует JWT.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (string, *models.User, error) {
	const op = "services.auth.Login"

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// Me возвращает профиль текущего пользователя.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	const op = "services.auth.Me"
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ValidateToken проверяет JWT и загружает актуальную роль пользователя.
// Токен удалённого пользователя считается недействительным.
func (s *Service) ValidateToken(ctx context.Context, token string) (models.Principal, error) {
	const op = "services.auth.ValidateToken"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}
	user, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Principal{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if err != nil {
		return models.Principal{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.Principal{UserID: user.ID, Role: user.Role}, nil
}
