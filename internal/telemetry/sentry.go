package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/magabrotheeeer/legal-letters/internal/config"
)

// InitSentry включает отправку ошибок, если задан DSN. Возвращает функцию сброса буфера.
func InitSentry(cfg config.Telemetry, env string) (func(), error) {
	const op = "telemetry.InitSentry"
	if cfg.SentryDSN == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		EnableTracing:    cfg.SentrySampleRate > 0,
		TracesSampleRate: cfg.SentrySampleRate,
		Environment:      env,
		ServerName:       cfg.ServiceName,
	})
	if err != nil {
		return func() {}, fmt.Errorf("%s: %w", op, err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureError отправляет ошибку фоновой операции в Sentry, если клиент настроен.
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if traceID := TraceIDFromContext(ctx); traceID != "" {
			scope.SetTag("trace_id", traceID)
		}
		hub.CaptureException(err)
	})
}
