package create

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/legal-letters/internal/cache"
	"github.com/magabrotheeeer/legal-letters/internal/services/subscription"
	"github.com/magabrotheeeer/legal-letters/internal/storage/memory"
)

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	svc := subscription.NewSubscriptionService(memory.NewSeeded(), cache.Noop{}, logger, time.Minute)
	handler := New(logger, svc)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "created",
			body:       `{"name":"Enterprise","letterCount":500,"price":"1999.00","billingCycle":"yearly","features":["API access"]}`,
			wantStatus: http.StatusCreated,
			wantBody:   `"name":"Enterprise"`,
		},
		{
			name:       "existing id",
			body:       `{"id":"11111111-1111-1111-1111-111111111111","name":"Dup","letterCount":1,"price":"1","billingCycle":"one-time"}`,
			wantStatus: http.StatusConflict,
			wantBody:   "plan already exists",
		},
		{
			name:       "unknown billing cycle",
			body:       `{"name":"Monthly","letterCount":4,"price":"10","billingCycle":"monthly"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "field BillingCycle must be one of [one-time yearly]",
		},
		{
			name:       "zero price",
			body:       `{"name":"Free","letterCount":1,"price":"0","billingCycle":"one-time"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "price must be a positive amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/plans", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
