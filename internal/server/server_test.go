package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaelzs/ThreeW/internal/metrics"
	"github.com/Kaelzs/ThreeW/internal/scheduler"
	"github.com/Kaelzs/ThreeW/internal/testutil"
)

type stubRuns struct {
	runs []scheduler.ScheduledRun
}

func (s stubRuns) Runs() []scheduler.ScheduledRun { return s.runs }

// Helper to find a free port
func getFreePort(t *testing.T) string {
	t.Helper()
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	require.NoError(t, err)
	l, err := net.ListenTCP("tcp", addr)
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().String()
}

func waitListening(t *testing.T, addr string) {
	t.Helper()
	var err error
	for i := 0; i < 20; i++ {
		var conn net.Conn
		conn, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.NoError(t, err, "Server did not start listening on %s", addr)
}

func TestNewHTTPServer(t *testing.T) {
	testutil.InitLogger(t)
	server := NewHTTPServer("127.0.0.1:0", stubRuns{}, nil)

	require.NotNil(t, server)
	require.NotNil(t, server.Mux())
	assert.Equal(t, "127.0.0.1:0", server.server.Addr)
}

func TestServer_StartStop(t *testing.T) {
	testutil.InitLogger(t)
	freeAddr := getFreePort(t)

	server := NewHTTPServer(freeAddr, stubRuns{}, prometheus.NewRegistry())
	server.Start()
	waitListening(t, freeAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx), "Server stop should not return an error")

	_, err := net.DialTimeout("tcp", freeAddr, 200*time.Millisecond)
	require.Error(t, err, "Server should not be listening after Stop()")

	require.NoError(t, server.Stop(ctx), "Stopping an already stopped server should not error")
}

func TestServer_StopWithoutStart(t *testing.T) {
	testutil.InitLogger(t)
	server := NewHTTPServer("127.0.0.1:0", stubRuns{}, nil)
	assert.NoError(t, server.Stop(context.Background()))
}

func TestServer_Stop_Timeout(t *testing.T) {
	testutil.InitLogger(t)
	freeAddr := getFreePort(t)

	server := NewHTTPServer(freeAddr, stubRuns{}, prometheus.NewRegistry())
	release := make(chan struct{})
	defer close(release)
	server.Mux().HandleFunc("/hang", func(w http.ResponseWriter, r *http.Request) {
		<-release
	})

	server.Start()
	waitListening(t, freeAddr)

	go func() {
		resp, err := http.Get("http://" + freeAddr + "/hang")
		if err == nil {
			resp.Body.Close()
		}
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := server.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "Server stop should return DeadlineExceeded error")
}

// --- Internal Handler Tests ---

func TestServer_HandleHealth(t *testing.T) {
	testutil.InitLogger(t)
	server := NewHTTPServer("", stubRuns{}, prometheus.NewRegistry())

	rr := httptest.NewRecorder()
	server.Mux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok\n", rr.Body.String())

	rr = httptest.NewRecorder()
	server.Mux().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestServer_HandleRuns(t *testing.T) {
	testutil.InitLogger(t)
	fireAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	scheduledAt := fireAt.Add(-time.Hour)
	server := NewHTTPServer("", stubRuns{runs: []scheduler.ScheduledRun{
		{EventID: "a", FireAt: fireAt, ScheduledAt: scheduledAt, Script: "tell application \"System Events\""},
	}}, prometheus.NewRegistry())

	rr := httptest.NewRecorder()
	server.Mux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0]["event_id"])
	assert.Equal(t, "2026-03-01T09:30:00Z", got[0]["fire_at"])
	assert.NotContains(t, got[0], "script")
}

func TestServer_HandleRuns_Empty(t *testing.T) {
	testutil.InitLogger(t)
	server := NewHTTPServer("", stubRuns{}, prometheus.NewRegistry())

	rr := httptest.NewRecorder()
	server.Mux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	testutil.InitLogger(t)
	reg := prometheus.NewRegistry()
	sink := metrics.NewPrometheusSink(reg)
	sink.RunScheduled()

	server := NewHTTPServer("", stubRuns{}, reg)
	ts := httptest.NewServer(server.Mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "threew_runs_scheduled_total 1")
}
