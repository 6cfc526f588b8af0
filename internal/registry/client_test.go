package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrybot/pkg/logx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second, logx.Nop()), srv
}

func TestStatusParsesRecords(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"services": {
			"svc-a": {
				"service_key": "svc-a",
				"status": "down",
				"service_group": "web",
				"time_since_last_heartbeat_readable": "10 minutes",
				"heartbeat_count": 3,
				"median_interval": 60.5,
				"metadata": {"display_name": "Service A"}
			},
			"svc-b": {"service_key": "svc-b", "status": "alive", "heartbeat_count": 9}
		}}`))
	}))

	got, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	a := got["svc-a"]
	assert.Equal(t, StateDown, a.Status)
	assert.Equal(t, "web", a.ServiceGroup)
	assert.Equal(t, "10 minutes", a.TimeSinceReadable)
	assert.Equal(t, 3, a.HeartbeatCount)
	require.NotNil(t, a.MedianInterval)
	assert.InDelta(t, 60.5, *a.MedianInterval, 0.001)
	assert.Equal(t, "Service A", a.Name("svc-a"))

	b := got["svc-b"]
	assert.Equal(t, StateAlive, b.Status)
	assert.Nil(t, b.MedianInterval)
	assert.Equal(t, "svc-b", b.Name("svc-b"))
	assert.True(t, b.AlertsOn(), "alerts default to enabled")
}

func TestHistoryQueryAndTimestamps(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/state-history", r.URL.Path)
		require.Equal(t, "svc-a", r.URL.Query().Get("service_key"))
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"transitions": [
			{"service_key":"svc-a","from_state":"alive","to_state":"down",
			 "timestamp":"2025-06-01T11:55:00","alert_message":"no heartbeat"},
			{"service_key":"svc-a","from_state":"down","to_state":"alive",
			 "timestamp":"2025-06-01T12:05:00+02:00","alerted":true}
		]}`))
	}))

	got, err := c.History(context.Background(), "svc-a", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StateDown, got[0].ToState)
	assert.Equal(t, "no heartbeat", got[0].AlertMessage)
	assert.Equal(t, 2025, got[0].Timestamp.Year(), "timezone-less timestamps parse")
	assert.True(t, got[1].Alerted)
	assert.Equal(t, 10, got[1].Timestamp.UTC().Hour())
}

func TestPendingTransitionsFlag(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/state-transitions", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("only_not_alerted"))
		_, _ = w.Write([]byte(`{"transitions": []}`))
	}))

	got, err := c.PendingTransitions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConfigurePayload(t *testing.T) {
	t.Parallel()
	var body map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/configure-service", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{}`))
	}))

	off := false
	err := c.Configure(context.Background(), ConfigureRequest{ServiceKey: "svc-a", AlertsEnabled: &off})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"service_key": "svc-a", "alerts_enabled": false}, body)

	err = c.Configure(context.Background(), ConfigureRequest{ServiceKey: "svc-a", DisplayName: "My Service"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"service_key": "svc-a", "display_name": "My Service"}, body)

	require.Error(t, c.Configure(context.Background(), ConfigureRequest{}))
}

func TestMarkAlertedPayload(t *testing.T) {
	t.Parallel()
	var body map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mark-alerted", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{}`))
	}))

	err := c.MarkAlerted(context.Background(), Transition{ServiceKey: "svc-a", ID: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"service_key": "svc-a", "transition_id": "t-1"}, body)
}

func TestHTTPErrorCarriesStatusAndBody(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))

	_, err := c.Status(context.Background())
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	assert.Equal(t, "boom", he.Body)
}

func TestUnreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listening anymore

	c := New(srv.URL, 500*time.Millisecond, logx.Nop())
	_, err := c.Services(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreachable), "got: %v", err)
}

func TestDecodeErrorOnShapeMismatch(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"services": "not-a-map"}`))
	}))

	_, err := c.Status(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnreachable))
	var he *HTTPError
	assert.False(t, errors.As(err, &he))
}
