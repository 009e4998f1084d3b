package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diogo/querychat/internal/api"
	"github.com/diogo/querychat/internal/models"
)

func newTestServer(t *testing.T, responder Responder) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RatePerSecond = 0
	return New(cfg, responder, zap.NewNop())
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func failing(msg string) ResponderFunc {
	return func(ctx context.Context, query string, progress func(string)) (*models.ChatResponse, error) {
		return nil, errors.New(msg)
	}
}

func TestChat_EchoesQuery(t *testing.T) {
	s := newTestServer(t, EchoResponder{})

	rec := post(t, s.Handler(), "/chat", `{"query":"how many orders shipped?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Contains(t, body["summary"], "how many orders shipped?")
	assert.Contains(t, body["summary"], "4 words")
	assert.NotContains(t, body, "visualization")
	assert.NotContains(t, body, "error")
}

func TestChat_RejectsMissingQuery(t *testing.T) {
	s := newTestServer(t, EchoResponder{})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"invalid json", "{not json"},
		{"missing field", `{}`},
		{"empty string", `{"query":""}`},
		{"whitespace", `{"query":"   "}`},
		{"wrong type", `{"query":42}`},
	}

	for _, path := range []string{"/chat", "/analyze", "/stream"} {
		for _, tt := range tests {
			t.Run(path+"/"+tt.name, func(t *testing.T) {
				rec := post(t, s.Handler(), path, tt.body)
				require.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, msgNoQuery, decodeBody(t, rec)["error"])
			})
		}
	}
}

func TestResponderFailure_ErrorMessages(t *testing.T) {
	s := newTestServer(t, failing("database unavailable"))

	rec := post(t, s.Handler(), "/chat", `{"query":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "database unavailable", decodeBody(t, rec)["error"])

	rec = post(t, s.Handler(), "/analyze", `{"query":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An error occurred: database unavailable", decodeBody(t, rec)["error"])
}

func TestEchoResponder_FailPrefix(t *testing.T) {
	s := newTestServer(t, EchoResponder{})

	rec := post(t, s.Handler(), "/chat", `{"query":"/fail please"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "simulated backend failure", decodeBody(t, rec)["error"])
}

func TestChat_ChartQueryCarriesPNG(t *testing.T) {
	s := newTestServer(t, EchoResponder{})

	rec := post(t, s.Handler(), "/chat", `{"query":"plot monthly revenue"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Visualization.HasImage())
	assert.Contains(t, resp.Visualization.Description, "Bar chart")

	raw, err := base64.StdEncoding.DecodeString(resp.Visualization.Image)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, chartWidth, cfg.Width)
	assert.Equal(t, chartHeight, cfg.Height)
}

func TestBarChartPNG_EmptyValues(t *testing.T) {
	raw, err := BarChartPNG(nil)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
}

func readLines(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var lines []map[string]any
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestStream_EmitsUpdatesThenFinal(t *testing.T) {
	s := newTestServer(t, EchoResponder{})

	rec := post(t, s.Handler(), "/stream", `{"query":"chart sales by region"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	lines := readLines(t, rec)
	require.Len(t, lines, 3)
	assert.Equal(t, "update", lines[0]["type"])
	assert.Equal(t, "Analyzing query", lines[0]["content"])
	assert.Equal(t, "update", lines[1]["type"])
	assert.Equal(t, "Rendering chart", lines[1]["content"])
	assert.Equal(t, "final", lines[2]["type"])

	final, ok := lines[2]["content"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, final["summary"], "chart sales by region")
	assert.Contains(t, final, "visualization")
}

func TestStream_ErrorEvent(t *testing.T) {
	s := newTestServer(t, failing("query timed out"))

	rec := post(t, s.Handler(), "/stream", `{"query":"x"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	lines := readLines(t, rec)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0]["type"])
	assert.Equal(t, "query timed out", lines[0]["content"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestChat_WrongMethod(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChat_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"query":"` + strings.Repeat("a", MaxRequestBodySize) + `"}`
	rec := post(t, s.Handler(), "/chat", body)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, msgTooLarge, decodeBody(t, rec)["error"])
}

func TestRateLimit_PerHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RatePerSecond = 0.001
	cfg.Burst = 2
	s := New(cfg, EchoResponder{}, zap.NewNop())

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"hi"}`))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("192.0.2.1:1000"))
	assert.Equal(t, http.StatusOK, send("192.0.2.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:1002"))

	// Another host has its own budget
	assert.Equal(t, http.StatusOK, send("192.0.2.2:1000"))
}

func TestHostLimiter_SweepsIdleHosts(t *testing.T) {
	l := NewHostLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	now = now.Add(time.Minute)
	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Hosts())

	now = now.Add(hostIdleTTL + time.Second)
	assert.True(t, l.Allow("c"))
	assert.Equal(t, 1, l.Hosts())
}

func TestLogging_SetsRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec := post(t, s.Handler(), "/chat", `{"query":"hi"}`)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get(RequestIDHeader))
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	s := newTestServer(t, ResponderFunc(func(ctx context.Context, query string, progress func(string)) (*models.ChatResponse, error) {
		panic("boom")
	}))

	rec := post(t, s.Handler(), "/chat", `{"query":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientRoundTrip(t *testing.T) {
	s := newTestServer(t, EchoResponder{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	client, err := api.NewClient(api.WithBaseURL(ts.URL), api.WithTimeout(5*time.Second))
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Chat(context.Background(), "plot signups")
	require.NoError(t, err)
	assert.False(t, resp.HasError())
	assert.Contains(t, resp.Summary, "plot signups")
	assert.True(t, resp.Visualization.HasImage())

	resp, err = client.Chat(context.Background(), "  ")
	require.Error(t, err)
	assert.Nil(t, resp)

	var updates []string
	resp, err = client.Stream(context.Background(), "hello", func(ev models.StreamEvent) error {
		if ev.Type == models.StreamUpdate {
			updates = append(updates, ev.Text)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Analyzing query"}, updates)
	assert.Contains(t, resp.Summary, "hello")
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	s := New(cfg, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
