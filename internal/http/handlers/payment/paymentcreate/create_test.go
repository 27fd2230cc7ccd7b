package paymentcreate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/commission"
)

type ProviderClientMock struct {
	mock.Mock
}

func (m *ProviderClientMock) CreatePaymentIntent(ctx context.Context, userID string, q models.Quote) (string, error) {
	args := m.Called(ctx, userID, q)
	return args.String(0), args.Error(1)
}

type QuoterMock struct {
	mock.Mock
}

func (m *QuoterMock) Quote(ctx context.Context, planID, referralCode string) (models.Quote, error) {
	args := m.Called(ctx, planID, referralCode)
	q, _ := args.Get(0).(models.Quote)
	return q, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCreatePaymentHandler(t *testing.T) {
	user := models.Principal{UserID: "u1", Role: models.RoleUser}
	quote := models.Quote{
		PlanID:         "plan-1",
		DiscountCode:   "EMPLOYEE20-JD",
		OriginalPrice:  decimal.RequireFromString("299"),
		DiscountAmount: decimal.RequireFromString("59.8"),
		FinalPrice:     decimal.RequireFromString("239.2"),
	}

	tests := []struct {
		name       string
		body       string
		setup      func(p *ProviderClientMock, q *QuoterMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "intent created with referral discount",
			body: `{"planId":"plan-1","discountCode":"EMPLOYEE20-JD"}`,
			setup: func(p *ProviderClientMock, q *QuoterMock) {
				q.On("Quote", mock.Anything, "plan-1", "EMPLOYEE20-JD").Return(quote, nil).Once()
				p.On("CreatePaymentIntent", mock.Anything, "u1", quote).Return("pi_secret", nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"clientSecret":"pi_secret"`,
		},
		{
			name: "unknown plan",
			body: `{"planId":"missing"}`,
			setup: func(_ *ProviderClientMock, q *QuoterMock) {
				q.On("Quote", mock.Anything, "missing", "").Return(nil, commission.ErrPlanNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
			wantBody:   "plan not found",
		},
		{
			name:       "missing plan id",
			body:       `{}`,
			setup:      func(*ProviderClientMock, *QuoterMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "field PlanID is a required field",
		},
		{
			name: "provider failure",
			body: `{"planId":"plan-1","discountCode":"EMPLOYEE20-JD"}`,
			setup: func(p *ProviderClientMock, q *QuoterMock) {
				q.On("Quote", mock.Anything, "plan-1", "EMPLOYEE20-JD").Return(quote, nil).Once()
				p.On("CreatePaymentIntent", mock.Anything, "u1", quote).Return("", errors.New("stripe down")).Once()
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   "payment provider error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(ProviderClientMock)
			quoter := new(QuoterMock)
			tt.setup(provider, quoter)

			req := httptest.NewRequest(http.MethodPost, "/api/create-payment-intent", strings.NewReader(tt.body))
			req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), user))
			rec := httptest.NewRecorder()

			New(newNoopLogger(), provider, quoter).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			provider.AssertExpectations(t)
			quoter.AssertExpectations(t)
		})
	}
}

func TestCreatePaymentHandler_NotConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/create-payment-intent", strings.NewReader(`{"planId":"p"}`))
	rec := httptest.NewRecorder()

	New(newNoopLogger(), nil, new(QuoterMock)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
