package signup

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/legal-letters/internal/lib/jwt"
	"github.com/magabrotheeeer/legal-letters/internal/services/auth"
	"github.com/magabrotheeeer/legal-letters/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSignupHandler(t *testing.T) {
	store := memory.New()
	svc := auth.NewAuthService(store, jwt.NewJWTMaker("secret", time.Hour))
	handler := New(newNoopLogger(), svc)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "user signup",
			body:       `{"email":"jane@example.com","password":"secret1","firstName":"Jane","lastName":"Doe"}`,
			wantStatus: http.StatusCreated,
			wantBody:   `"role":"user"`,
		},
		{
			name:       "duplicate email in other case",
			body:       `{"email":"JANE@example.com","password":"secret1","firstName":"Jane","lastName":"Doe"}`,
			wantStatus: http.StatusConflict,
			wantBody:   "user already exists",
		},
		{
			name:       "employee signup",
			body:       `{"email":"john@example.com","password":"secret1","firstName":"John","lastName":"Smith","role":"employee"}`,
			wantStatus: http.StatusCreated,
			wantBody:   `"role":"employee"`,
		},
		{
			name:       "admin cannot self register",
			body:       `{"email":"root@example.com","password":"secret1","firstName":"R","lastName":"T","role":"admin"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "field Role must be one of [user employee]",
		},
		{
			name:       "short password",
			body:       `{"email":"short@example.com","password":"123","firstName":"S","lastName":"P"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "field Password must be at least 6 characters",
		},
		{
			name:       "bad json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}

	emp, err := store.GetUserByEmail(context.Background(), "john@example.com")
	require.NoError(t, err)
	e, err := store.GetEmployeeByUserID(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "EMPLOYEE20-JS", e.ReferralCode)
}
