package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/legal-letters/internal/migrations"
	"github.com/magabrotheeeer/legal-letters/internal/models"
)

const singleLetterPlanID = "11111111-1111-1111-1111-111111111111"

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() || os.Getenv("SKIP_INTEGRATION_TESTS") == "true" {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	pgPort := nat.Port("5432/tcp")
	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort(pgPort),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(3*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, pgPort)
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	var s *Storage
	for range 10 {
		s, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(s.DB, filepath.Join(root, "migrations")))

	cleanup := func() {
		_ = s.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return s, cleanup
}

// TestDataFactory содержит методы для создания тестовых данных.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных.
func NewTestDataFactory(s *Storage) *TestDataFactory {
	return &TestDataFactory{storage: s}
}

// CreateUser создает тестового пользователя.
func (f *TestDataFactory) CreateUser(t *testing.T, email string, role models.Role) *models.User {
	u, err := f.storage.CreateUser(context.Background(), models.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Jane",
		LastName:     "Doe",
		Role:         role,
	})
	require.NoError(t, err)
	return u
}

// CreateEmployee создает сотрудника с реферальным кодом.
func (f *TestDataFactory) CreateEmployee(t *testing.T, userID, code string) *models.Employee {
	e, err := f.storage.CreateEmployee(context.Background(), models.Employee{
		UserID:             userID,
		EmployeeCode:       code,
		ReferralCode:       code,
		CommissionRate:     models.DefaultCommissionRate,
		DiscountPercentage: models.DefaultDiscountPercentage,
		PerformanceTier:    models.TierBronze,
		IsActive:           true,
	})
	require.NoError(t, err)
	return e
}

// CreateSubscription оформляет покупку плана Single Letter с заданной квотой.
func (f *TestDataFactory) CreateSubscription(t *testing.T, eventID, userID string, letters int) *models.UserSubscription {
	sub, err := f.storage.RecordPurchase(context.Background(), models.Purchase{
		EventID: eventID,
		Subscription: models.UserSubscription{
			UserID:           userID,
			PlanID:           singleLetterPlanID,
			Status:           models.SubscriptionActive,
			LettersRemaining: letters,
			OriginalPrice:    decimal.RequireFromString("299.00"),
			FinalPrice:       decimal.RequireFromString("299.00"),
			StartedAt:        time.Now(),
		},
	})
	require.NoError(t, err)
	return sub
}

// CreateLetter создает письмо в статусе requested.
func (f *TestDataFactory) CreateLetter(t *testing.T, userID string) *models.Letter {
	addr := models.Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701", Country: "USA"}
	l, err := f.storage.CreateLetter(context.Background(), models.Letter{
		UserID:            userID,
		Title:             "Unpaid invoice",
		SenderName:        "Jane Doe",
		SenderAddress:     addr,
		RecipientName:     "ACME Corp",
		RecipientAddress:  addr,
		Subject:           "Invoice #42",
		Conflict:          "Invoice unpaid for 90 days",
		DesiredResolution: "Pay within 14 days",
	})
	require.NoError(t, err)
	return l
}
