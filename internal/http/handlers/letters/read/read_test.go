package read

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/letters"
)

// MockService реализует интерфейс read.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Get(ctx context.Context, actor models.Principal, id string) (*models.Letter, error) {
	args := m.Called(ctx, actor, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Letter), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	owner := models.Principal{UserID: "u1", Role: models.RoleUser}

	tests := []struct {
		name           string
		id             string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное чтение письма",
			id:   "l1",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, owner, "l1").
					Return(&models.Letter{ID: "l1", UserID: "u1", Title: "Deposit demand", Status: models.LetterReviewing}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"title":"Deposit demand"`,
		},
		{
			name: "письмо не найдено",
			id:   "missing",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, owner, "missing").Return(nil, letters.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"letter not found"}`,
		},
		{
			name: "чужое письмо",
			id:   "l2",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, owner, "l2").Return(nil, letters.ErrForbidden)
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `{"status":"Error","error":"access denied"}`,
		},
		{
			name: "ошибка хранилища",
			id:   "l3",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, owner, "l3").Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockService)
			tt.setupMock(mockSvc)
			handler := New(logger, mockSvc)

			req := httptest.NewRequest(http.MethodGet, "/api/letters/"+tt.id, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			req = req.WithContext(middlewarectx.WithPrincipal(ctx, owner))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockSvc.AssertExpectations(t)
		})
	}
}
