package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/config"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "voicecoach"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, Tracer())
}

func TestNewTracerProvider_ExportsSpans(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/v1/traces", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tp, err := NewTracerProvider(context.Background(), srv.URL+"/v1/traces", "voicecoach-test")
	require.NoError(t, err)

	_, span := tp.Tracer(InstrumentationName).Start(context.Background(), "alert")
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Equal(t, 1, hits)
}
