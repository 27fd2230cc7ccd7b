package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/legal-letters/internal/config"
)

func TestNew_DisabledUsesLocalProvider(t *testing.T) {
	tel, err := New(context.Background(), config.Telemetry{ServiceName: "legal-letters"}, "local")
	require.NoError(t, err)
	require.NotNil(t, tel.Tracer)

	ctx, span := tel.Tracer.Start(context.Background(), "op")
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	EndSpan(span, errors.New("boom"))

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTraceIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestSentry_DisabledIsNoop(t *testing.T) {
	flush, err := InitSentry(config.Telemetry{}, "local")
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		CaptureError(context.Background(), errors.New("x"), map[string]string{"letter_id": "l1"})
		CaptureError(context.Background(), nil, nil)
		flush()
	})
}

func TestShutdown_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
}
