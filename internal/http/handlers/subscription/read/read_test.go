package read

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/legal-letters/internal/cache"
	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/subscription"
	"github.com/magabrotheeeer/legal-letters/internal/storage/memory"
)

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	store := memory.NewSeeded()
	_, err := store.RecordPurchase(context.Background(), models.Purchase{
		EventID: "evt",
		Subscription: models.UserSubscription{
			UserID: "u1", PlanID: "p", Status: models.SubscriptionActive, LettersRemaining: 48,
		},
	})
	require.NoError(t, err)
	handler := New(logger, subscription.NewSubscriptionService(store, cache.Noop{}, logger, time.Minute))

	tests := []struct {
		name     string
		userID   string
		wantBody string
	}{
		{name: "active subscription", userID: "u1", wantBody: `"lettersRemaining":48`},
		{name: "no subscription", userID: "u2", wantBody: `"subscription":null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user/subscription", nil)
			req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), models.Principal{UserID: tt.userID, Role: models.RoleUser}))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
