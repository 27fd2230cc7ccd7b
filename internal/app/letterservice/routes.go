// Package letterservice собирает HTTP-сервис писем: хранилище, сервисы и маршруты.
package letterservice

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	commissionpaid "github.com/magabrotheeeer/legal-letters/internal/http/handlers/admin/commissionpaid"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/admin/employees"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/admin/employeeupdate"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/admin/users"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/auth/me"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/auth/signup"
	admindashboard "github.com/magabrotheeeer/legal-letters/internal/http/handlers/dashboard/admin"
	employeedashboard "github.com/magabrotheeeer/legal-letters/internal/http/handlers/dashboard/employee"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/health"
	lettercreate "github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/create"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/download"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/generate"
	letterlist "github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/list"
	letterread "github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/read"
	letterrender "github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/render"
	letterupdate "github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/update"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/payment/paymentcreate"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/payment/paymentwebhook"
	plancreate "github.com/magabrotheeeer/legal-letters/internal/http/handlers/subscription/create"
	planlist "github.com/magabrotheeeer/legal-letters/internal/http/handlers/subscription/list"
	subread "github.com/magabrotheeeer/legal-letters/internal/http/handlers/subscription/read"
	subupdate "github.com/magabrotheeeer/legal-letters/internal/http/handlers/subscription/update"
	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/lib/policy"
	"github.com/magabrotheeeer/legal-letters/internal/metrics"
	adminservice "github.com/magabrotheeeer/legal-letters/internal/services/admin"
	authservice "github.com/magabrotheeeer/legal-letters/internal/services/auth"
	"github.com/magabrotheeeer/legal-letters/internal/services/commission"
	"github.com/magabrotheeeer/legal-letters/internal/services/letters"
	subservice "github.com/magabrotheeeer/legal-letters/internal/services/subscription"
)

// Services — зависимости маршрутов. Provider, Parser и DB могут быть nil.
type Services struct {
	Auth         *authservice.Service
	Letters      *letters.Engine
	Commission   *commission.Service
	Subscription *subservice.Service
	Admin        *adminservice.Service
	Provider     paymentcreate.ProviderClient
	Parser       paymentwebhook.Parser
	DB           health.Pinger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
}

// Лимиты запросов: вход и регистрация по адресу клиента, создание писем по пользователю.
const (
	authRPS     = 1
	authBurst   = 5
	createRPS   = 0.2
	createBurst = 3
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services, extra ...func(http.Handler) http.Handler) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.HTTPMetrics(s.Metrics),
	)
	r.Use(extra...)

	authLimiter := middlewarectx.NewLimiter(authRPS, authBurst)
	createLimiter := middlewarectx.NewLimiter(createRPS, createBurst)
	allow := func(a policy.Action) func(http.Handler) http.Handler {
		return middlewarectx.RequireAction(logger, a)
	}

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, authLimiter))
			r.Post("/auth/signup", signup.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)
		})
		r.Get("/subscription-plans", planlist.New(logger, s.Subscription).ServeHTTP)

		// Webhook без аутентификации, подлинность проверяется подписью
		r.Post("/webhooks/stripe", paymentwebhook.New(logger, s.Parser, s.Commission, s.Metrics).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))

			r.Get("/auth/me", me.New(logger, s.Auth).ServeHTTP)
			r.With(allow(policy.ActionViewSubscription)).Get("/user/subscription", subread.New(logger, s.Subscription).ServeHTTP)
			r.With(allow(policy.ActionPurchase)).Post("/create-payment-intent", paymentcreate.New(logger, s.Provider, s.Commission).ServeHTTP)

			r.Route("/letters", func(r chi.Router) {
				r.With(allow(policy.ActionViewLetter)).Get("/", letterlist.New(logger, s.Letters).ServeHTTP)
				r.With(
					allow(policy.ActionCreateLetter),
					middlewarectx.RateLimitMiddleware(logger, createLimiter),
				).Post("/", lettercreate.New(logger, s.Letters).ServeHTTP)
				r.With(allow(policy.ActionViewLetter)).Get("/{id}", letterread.New(logger, s.Letters).ServeHTTP)
				r.With(allow(policy.ActionReviewLetter)).Patch("/{id}", letterupdate.New(logger, s.Letters).ServeHTTP)
				r.With(allow(policy.ActionRetryGeneration)).Post("/{id}/generate", generate.New(logger, s.Letters).ServeHTTP)
				r.With(allow(policy.ActionDownloadLetter)).Get("/{id}/download", download.New(logger, s.Letters).ServeHTTP)
			})

			r.With(allow(policy.ActionEmployeeDashboard)).Get("/employee/dashboard", employeedashboard.New(logger, s.Commission).ServeHTTP)

			r.Route("/admin", func(r chi.Router) {
				r.With(allow(policy.ActionAdminDashboard)).Get("/dashboard", admindashboard.New(logger, s.Admin).ServeHTTP)
				r.With(allow(policy.ActionListUsers)).Get("/users", users.New(logger, s.Admin).ServeHTTP)
				r.With(allow(policy.ActionManageEmployees)).Get("/employees", employees.New(logger, s.Admin).ServeHTTP)
				r.With(allow(policy.ActionManageEmployees)).Patch("/employees/{id}", employeeupdate.New(logger, s.Commission).ServeHTTP)
				r.With(allow(policy.ActionPayCommission)).Post("/commissions/{id}/paid", commissionpaid.New(logger, s.Commission).ServeHTTP)
				r.With(allow(policy.ActionCorrectCredits)).Post("/subscriptions/{id}/credits", subupdate.New(logger, s.Subscription).ServeHTTP)
				r.With(allow(policy.ActionManagePlans)).Post("/plans", plancreate.New(logger, s.Subscription).ServeHTTP)
				r.With(allow(policy.ActionAdminDownload)).Get("/letters/{id}/download", download.NewAdmin(logger, s.Letters).ServeHTTP)
				r.With(allow(policy.ActionRenderLetter)).Post("/letters/{id}/render", letterrender.New(logger, s.Letters).ServeHTTP)
			})
		})
	})

	r.Get("/healthz", health.New(logger, s.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
