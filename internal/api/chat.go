package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
)

// maxResponseSize bounds a response body; visualizations are inlined as base64
const maxResponseSize = 32 << 20

// Chat sends a query to POST /chat
func (c *Client) Chat(ctx context.Context, query string) (*models.ChatResponse, error) {
	return c.exchange(ctx, models.EndpointChat, query)
}

// Analyze sends a query to POST /analyze, which shares the /chat contract
func (c *Client) Analyze(ctx context.Context, query string) (*models.ChatResponse, error) {
	return c.exchange(ctx, models.EndpointAnalyze, query)
}

// Query sends a query to the configured endpoint
func (c *Client) Query(ctx context.Context, query string) (*models.ChatResponse, error) {
	return c.exchange(ctx, c.endpoint, query)
}

// exchange performs one request/response round trip. The HTTP status does not
// decide the outcome: any JSON object body is parsed, so backend-reported
// errors sent with 4xx/5xx still reach the caller as ChatResponse.Error.
func (c *Client) exchange(ctx context.Context, path, query string) (*models.ChatResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.post(ctx, path, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("read response", c.url(path), err)
	}

	out, err := parseChatResponse(body)
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, apierrors.NewAPIErrorWithBody(resp.StatusCode, path, "non-JSON error response", string(body))
		}
		return nil, err
	}
	out.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("backend returned error status",
			zap.String("endpoint", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error", out.Error),
		)
	}

	return out, nil
}

// post builds and sends the JSON request, returning the open response
func (c *Client) post(ctx context.Context, path, query string) (*http.Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apierrors.ErrEmptyQuery
	}
	if c.IsClosed() {
		return nil, apierrors.ErrClientClosed
	}

	payload, err := json.Marshal(models.ChatRequest{Query: query})
	if err != nil {
		return nil, apierrors.NewParseError("failed to encode request: "+err.Error(), "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(payload))
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("create request", c.url(path), err)
	}

	for key, value := range models.DefaultHeaders() {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.Debug("sending query", zap.String("endpoint", path), zap.Int("query_len", len(query)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if apierrors.IsTimeoutError(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apierrors.NewNetworkErrorWithEndpoint(path, c.url(path),
				apierrors.NewTimeoutError(c.timeout.String()))
		}
		return nil, apierrors.NewNetworkErrorWithEndpoint(path, c.url(path), err)
	}

	c.logger.Info("backend responded",
		zap.String("endpoint", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	return resp, nil
}

// withTimeout applies the client timeout. The caller must read the body
// before calling the returned cancel.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// parseChatResponse extracts the optional fields of a chat reply
func parseChatResponse(body []byte) (*models.ChatResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, apierrors.NewParseError("body is not valid JSON", "")
	}

	// A JSON null has no fields to read. Any other non-object value carries
	// none of ours, so it is an answer with nothing in it.
	parsed := gjson.ParseBytes(body)
	switch {
	case parsed.Type == gjson.Null:
		return nil, apierrors.NewParseError("body is JSON null", "")
	case !parsed.IsObject():
		return &models.ChatResponse{}, nil
	}

	return chatResponseFromResult(parsed), nil
}

// chatResponseFromResult maps a parsed JSON object onto ChatResponse
func chatResponseFromResult(obj gjson.Result) *models.ChatResponse {
	out := &models.ChatResponse{
		Error:   presentString(obj.Get(PathError)),
		Summary: presentString(obj.Get(PathSummary)),
	}

	viz := obj.Get(PathVisualization)
	if viz.IsObject() {
		v := &models.Visualization{
			Image:       presentString(viz.Get(PathVizImage)),
			Description: presentString(viz.Get(PathVizDescription)),
		}
		if v.Image != "" || v.Description != "" {
			out.Visualization = v
		}
	}

	return out
}

// presentString returns the field's text when it counts as present.
// Missing, null, false, 0 and "" are all absent.
func presentString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.True:
		return r.Raw
	case gjson.Number:
		if r.Num == 0 {
			return ""
		}
		return r.Raw
	case gjson.JSON:
		return r.Raw
	default:
		return ""
	}
}
