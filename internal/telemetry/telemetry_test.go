package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zaptest"
)

// saveAndRestoreGlobalProvider snapshots the current global OTel tracer
// provider and restores it via t.Cleanup so tests don't leak state.
func saveAndRestoreGlobalProvider(t *testing.T) {
	t.Helper()
	orig := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
	})
}

func TestInit_Disabled(t *testing.T) {
	saveAndRestoreGlobalProvider(t)
	logger := zaptest.NewLogger(t)

	p, err := Init(Config{Enabled: false}, logger)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.tp)

	// Tracer still works in noop form.
	tr := p.Tracer("test")
	_, span := tr.Start(context.Background(), "op")
	span.End()
}

func TestShutdown_Noop(t *testing.T) {
	logger := zaptest.NewLogger(t)

	p, err := Init(Config{Enabled: false}, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, p.Shutdown(ctx))
}

func TestShutdown_NilProvider(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
	_, span := p.Tracer("test").Start(context.Background(), "op")
	span.End()
}
