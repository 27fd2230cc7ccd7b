package render

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

type MockService struct {
	mock.Mock
}

func (m *MockService) RenderAgain(ctx context.Context, actor models.Principal, id string) (*models.Letter, error) {
	args := m.Called(ctx, actor, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Letter), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRenderHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	admin := models.Principal{UserID: "a1", Role: models.RoleAdmin}

	tests := []struct {
		name           string
		withPrincipal  bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:          "rendered",
			withPrincipal: true,
			setupMock: func(m *MockService) {
				m.On("RenderAgain", mock.Anything, admin, "l1").
					Return(&models.Letter{ID: "l1", Status: models.LetterCompleted, PDFPath: "letter-l1-1700000000000.pdf"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "letter-l1-1700000000000.pdf",
		},
		{
			name:          "letter not completed",
			withPrincipal: true,
			setupMock: func(m *MockService) {
				m.On("RenderAgain", mock.Anything, admin, "l1").Return(nil, letters.ErrInvalidStatus).Once()
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:          "unknown letter",
			withPrincipal: true,
			setupMock: func(m *MockService) {
				m.On("RenderAgain", mock.Anything, admin, "l1").Return(nil, letters.ErrNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "letter not found",
		},
		{
			name:          "renderer fails",
			withPrincipal: true,
			setupMock: func(m *MockService) {
				m.On("RenderAgain", mock.Anything, admin, "l1").Return(nil, errors.New("disk full")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "no principal",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockService)
			tt.setupMock(mockSvc)
			handler := New(logger, mockSvc)

			req := httptest.NewRequest(http.MethodPost, "/api/admin/letters/l1/render", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "l1")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			if tt.withPrincipal {
				ctx = middlewarectx.WithPrincipal(ctx, admin)
			}
			req = req.WithContext(ctx)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockSvc.AssertExpectations(t)
		})
	}
}
