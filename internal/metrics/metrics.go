// Package metrics содержит счётчики Prometheus жизненного цикла писем, платежей и HTTP.
// Методы безопасны для nil-получателя, поэтому сервисы в тестах работают без реестра.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы операций.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeNoCredit = "no_credit"
	OutcomeSkipped  = "skipped"
)

// Metrics набор коллекторов сервиса.
type Metrics struct {
	lettersCreated     prometheus.Counter
	generations        *prometheus.CounterVec
	generationDuration prometheus.Histogram
	creditsDeducted    prometheus.Counter
	renders            *prometheus.CounterVec
	downloads          *prometheus.CounterVec
	commissions        prometheus.Counter
	webhookEvents      *prometheus.CounterVec
	reaped             prometheus.Counter
	httpDuration       *prometheus.HistogramVec
}

// New регистрирует коллекторы в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		lettersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "letters_created_total",
			Help: "Letters accepted for generation.",
		}),
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "letter_generations_total",
			Help: "Background generation attempts by outcome.",
		}, []string{"outcome"}),
		generationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "letter_generation_duration_seconds",
			Help:    "Duration of content generation calls.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		}),
		creditsDeducted: f.NewCounter(prometheus.CounterOpts{
			Name: "subscription_credits_deducted_total",
			Help: "Letter credits consumed by successful generations.",
		}),
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "letter_renders_total",
			Help: "PDF renders by outcome.",
		}, []string{"outcome"}),
		downloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "letter_downloads_total",
			Help: "Document downloads by actor kind.",
		}, []string{"kind"}),
		commissions: f.NewCounter(prometheus.CounterOpts{
			Name: "commissions_awarded_total",
			Help: "Commission records created for referred purchases.",
		}),
		webhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Payment webhook events by type and result.",
		}, []string{"type", "result"}),
		reaped: f.NewCounter(prometheus.CounterOpts{
			Name: "letters_reaped_total",
			Help: "Letters reset after being stuck in generating.",
		}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

func (m *Metrics) LetterCreated() {
	if m == nil {
		return
	}
	m.lettersCreated.Inc()
}

// Generation учитывает попытку генерации и её длительность (d == 0 не записывается).
func (m *Metrics) Generation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.generationDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) CreditDeducted() {
	if m == nil {
		return
	}
	m.creditsDeducted.Inc()
}

func (m *Metrics) Render(outcome string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Download(kind string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(kind).Inc()
}

func (m *Metrics) CommissionAwarded() {
	if m == nil {
		return
	}
	m.commissions.Inc()
}

func (m *Metrics) WebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) Reaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reaped.Add(float64(n))
}

// ObserveHTTP записывает длительность запроса.
func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, statusClass(status)).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
