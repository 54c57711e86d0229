package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackmcp/mcpbroker/broker"
	"github.com/rackmcp/mcpbroker/internal/codec"
	"github.com/rackmcp/mcpbroker/internal/config"
)

type statsProvider struct{ topics []string }

func (p *statsProvider) ProvidedTopics() []string { return p.topics }

func newTestServer(t *testing.T) (*httptest.Server, *broker.Broker) {
	t.Helper()
	cfg := config.New()
	cfg.DispatchWarnThreshold = 32
	b := broker.New(cfg, nil)
	t.Cleanup(b.Shutdown)

	r := chi.NewRouter()
	NewHandler(b, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, b
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 1, body.Version)
}

func TestListTopicsEndpoint(t *testing.T) {
	srv, b := newTestServer(t)
	require.True(t, broker.RegisterProvider[statsProvider](b, "telemetry", &statsProvider{topics: []string{"telemetry"}}))

	resp, err := http.Get(srv.URL + "/topics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body listTopicsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Topics, "telemetry")
}

func TestTopicStatsEndpoint(t *testing.T) {
	srv, b := newTestServer(t)

	payload, err := codec.Msgpack.Marshal(1.0)
	require.NoError(t, err)
	require.NoError(t, b.Publish("telemetry", 1, codec.FormatMsgpack, payload))

	require.Eventually(t, func() bool {
		return b.Metrics().TopicSnapshot("telemetry") != nil
	}, time.Second, time.Millisecond)

	resp, err := http.Get(srv.URL + "/topics/telemetry/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTopicStatsEndpointNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/topics/nope/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
