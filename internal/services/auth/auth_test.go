package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	customjwt "github.com/magabrotheeeer/legal-letters/internal/lib/jwt"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/auth"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
	"github.com/magabrotheeeer/legal-letters/internal/storage/memory"
)

// Мок для jwt.Maker
type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(userID, role string) (string, error) {
	args := m.Called(userID, role)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*customjwt.CustomClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.CustomClaims), args.Error(1)
}

// Мок для Store
type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *StoreMock) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *StoreMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *StoreMock) CreateEmployee(ctx context.Context, e models.Employee) (*models.Employee, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Employee), args.Error(1)
}

func newService(t *testing.T) (*auth.Service, *memory.Storage) {
	t.Helper()
	store := memory.New()
	return auth.NewAuthService(store, customjwt.NewJWTMaker("secret", 7*24*time.Hour)), store
}

func signupReq(email string, role models.Role) models.SignupRequest {
	return models.SignupRequest{
		Email:     email,
		Password:  "secret123",
		FirstName: "John",
		LastName:  "Doe",
		Role:      role,
	}
}

func TestService_Signup(t *testing.T) {
	tests := []struct {
		name     string
		req      models.SignupRequest
		wantRole models.Role
		wantErr  error
	}{
		{
			name:     "default role is user",
			req:      signupReq("user@example.com", ""),
			wantRole: models.RoleUser,
		},
		{
			name:     "employee signup",
			req:      signupReq("emp@example.com", models.RoleEmployee),
			wantRole: models.RoleEmployee,
		},
		{
			name:    "admin cannot self-register",
			req:     signupReq("admin@example.com", models.RoleAdmin),
			wantErr: auth.ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)
			token, user, err := svc.Signup(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, tt.wantRole, user.Role)
			assert.NotEqual(t, tt.req.Password, user.PasswordHash)
		})
	}
}

func TestService_Signup_DuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, signupReq("dup@example.com", ""))
	require.NoError(t, err)

	_, _, err = svc.Signup(ctx, signupReq("DUP@example.com", ""))
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestService_Signup_EmployeeReferralCode(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, first, err := svc.Signup(ctx, signupReq("jd1@example.com", models.RoleEmployee))
	require.NoError(t, err)
	_, second, err := svc.Signup(ctx, signupReq("jd2@example.com", models.RoleEmployee))
	require.NoError(t, err)

	e1, err := store.GetEmployeeByUserID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "EMPLOYEE20-JD", e1.ReferralCode)
	assert.True(t, e1.IsActive)
	assert.Equal(t, models.TierBronze, e1.PerformanceTier)
	assert.Equal(t, 20, e1.DiscountPercentage)
	assert.True(t, models.DefaultCommissionRate.Equal(e1.CommissionRate))

	e2, err := store.GetEmployeeByUserID(ctx, second.ID)
	require.NoError(t, err)
	assert.NotEqual(t, e1.ReferralCode, e2.ReferralCode)
	assert.Contains(t, e2.ReferralCode, "EMPLOYEE20-JD-")
}

func TestReferralCode(t *testing.T) {
	assert.Equal(t, "EMPLOYEE20-JD", auth.ReferralCode("john", "doe"))
	assert.Equal(t, "EMPLOYEE20-Я", auth.ReferralCode("яна", ""))
	assert.Equal(t, "EMPLOYEE20-", auth.ReferralCode(" ", ""))
}

func TestService_Login(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, _, err := svc.Signup(ctx, signupReq("login@example.com", ""))
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid credentials", email: "login@example.com", password: "secret123"},
		{name: "email is case-insensitive", email: "LOGIN@example.com", password: "secret123"},
		{name: "wrong password", email: "login@example.com", password: "nope", wantErr: auth.ErrInvalidCredentials},
		{name: "unknown user", email: "ghost@example.com", password: "secret123", wantErr: auth.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, user, err := svc.Login(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, "login@example.com", user.Email)
		})
	}
}

func TestService_ValidateToken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	token, user, err := svc.Signup(ctx, signupReq("token@example.com", models.RoleEmployee))
	require.NoError(t, err)

	p, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, models.RoleEmployee, p.Role)

	_, err = svc.ValidateToken(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestService_ValidateToken_DeletedUser(t *testing.T) {
	store := new(StoreMock)
	maker := new(JwtMakerMock)
	svc := auth.NewAuthService(store, maker)

	maker.On("ParseToken", "tok").Return(&customjwt.CustomClaims{UserID: "gone", Role: "user"}, nil)
	store.On("GetUser", mock.Anything, "gone").Return(nil, storage.ErrNotFound)

	_, err := svc.ValidateToken(context.Background(), "tok")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	store.AssertExpectations(t)
	maker.AssertExpectations(t)
}

func TestService_Signup_StoreFailure(t *testing.T) {
	store := new(StoreMock)
	maker := new(JwtMakerMock)
	svc := auth.NewAuthService(store, maker)
	dbErr := errors.New("db down")

	store.On("GetUserByEmail", mock.Anything, "x@example.com").Return(nil, dbErr)

	_, _, err := svc.Signup(context.Background(), signupReq("x@example.com", ""))
	assert.ErrorIs(t, err, dbErr)
	maker.AssertNotCalled(t, "GenerateToken", mock.Anything, mock.Anything)
}

func TestService_Me(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, user, err := svc.Signup(ctx, signupReq("me@example.com", ""))
	require.NoError(t, err)

	got, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got.Email)

	_, err = svc.Me(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
