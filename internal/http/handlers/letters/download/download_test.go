package download

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/legal-letters/internal/docrender"
	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/letters"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Download(ctx context.Context, actor models.Principal, id string) (*models.Letter, *docrender.Document, error) {
	args := m.Called(ctx, actor, id)
	return result(args)
}

func (m *MockService) AdminDownload(ctx context.Context, actor models.Principal, id string) (*models.Letter, *docrender.Document, error) {
	args := m.Called(ctx, actor, id)
	return result(args)
}

func result(args mock.Arguments) (*models.Letter, *docrender.Document, error) {
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Letter), args.Get(1).(*docrender.Document), args.Error(2)
}

type nopCloser struct{ *strings.Reader }

func (nopCloser) Close() error { return nil }

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newRequest(id string, p models.Principal) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/letters/"+id+"/download", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middlewarectx.WithPrincipal(ctx, p))
}

func TestDownloadHandler(t *testing.T) {
	owner := models.Principal{UserID: "u1", Role: models.RoleUser}
	pdf := "%PDF-1.3 fake"

	tests := []struct {
		name       string
		setupMock  func(*MockService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "serves pdf",
			setupMock: func(m *MockService) {
				doc := &docrender.Document{Name: "letter-l1.pdf", ModTime: time.Now(), Content: nopCloser{strings.NewReader(pdf)}}
				m.On("Download", mock.Anything, owner, "l1").Return(&models.Letter{ID: "l1"}, doc, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   pdf,
		},
		{
			name: "not ready",
			setupMock: func(m *MockService) {
				m.On("Download", mock.Anything, owner, "l1").Return(nil, nil, letters.ErrNotReady).Once()
			},
			wantStatus: http.StatusConflict,
			wantBody:   "letter is not ready for download",
		},
		{
			name: "someone else's letter",
			setupMock: func(m *MockService) {
				m.On("Download", mock.Anything, owner, "l1").Return(nil, nil, letters.ErrForbidden).Once()
			},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(rec, newRequest("l1", owner))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Header().Get("Content-Disposition"), "legal-letter-l1.pdf")
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAdminDownloadHandler(t *testing.T) {
	admin := models.Principal{UserID: "a1", Role: models.RoleAdmin}
	svc := new(MockService)
	doc := &docrender.Document{Name: "letter-l1.pdf", ModTime: time.Now(), Content: nopCloser{strings.NewReader("%PDF")}}
	svc.On("AdminDownload", mock.Anything, admin, "l1").Return(&models.Letter{ID: "l1"}, doc, nil).Once()

	rec := httptest.NewRecorder()
	NewAdmin(newNoopLogger(), svc).ServeHTTP(rec, newRequest("l1", admin))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF", rec.Body.String())
	svc.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything)
	svc.AssertExpectations(t)
}
