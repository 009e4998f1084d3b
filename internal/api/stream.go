package api

import (
	"bufio"
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
)

// Stream sends a query to POST /stream and calls fn for every NDJSON event.
// It returns the response carried by the final event. An error event becomes
// a ChatResponse with Error set, matching how /chat reports failures.
// Returning an error from fn stops reading.
func (c *Client) Stream(ctx context.Context, query string, fn func(models.StreamEvent) error) (*models.ChatResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.post(ctx, models.EndpointStream, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		event, err := parseStreamLine(line)
		if err != nil {
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, apierrors.NewAPIErrorWithBody(resp.StatusCode, models.EndpointStream, "non-JSON error response", string(line))
			}
			return nil, apierrors.NewParseError(fmt.Sprintf("line %d: %v", lineNo, err), "")
		}

		// A plain /chat style error object answers a rejected stream request
		if event.Type == "" && event.Response != nil {
			event.Response.StatusCode = resp.StatusCode
			return event.Response, nil
		}

		if fn != nil {
			if err := fn(event); err != nil {
				return nil, err
			}
		}

		switch event.Type {
		case models.StreamFinal:
			event.Response.StatusCode = resp.StatusCode
			return event.Response, nil
		case models.StreamError:
			c.logger.Warn("stream reported error", zap.String("error", event.Text))
			return &models.ChatResponse{Error: event.Text, StatusCode: resp.StatusCode}, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("read stream", c.url(models.EndpointStream), err)
	}

	return nil, apierrors.NewParseError("stream ended without a final event", PathStreamType)
}

// parseStreamLine decodes one NDJSON line of the /stream endpoint
func parseStreamLine(line []byte) (models.StreamEvent, error) {
	if !gjson.ValidBytes(line) {
		return models.StreamEvent{}, fmt.Errorf("not valid JSON")
	}

	parsed := gjson.ParseBytes(line)
	if !parsed.IsObject() {
		return models.StreamEvent{}, fmt.Errorf("expected a JSON object")
	}

	typ := parsed.Get(PathStreamType)
	if !typ.Exists() {
		// Validation failures come back as {"error": "..."} without a type
		return models.StreamEvent{Response: chatResponseFromResult(parsed)}, nil
	}

	content := parsed.Get(PathStreamContent)
	event := models.StreamEvent{Type: models.StreamEventType(typ.String())}

	switch event.Type {
	case models.StreamUpdate, models.StreamError:
		event.Text = content.String()
	case models.StreamFinal:
		if !content.IsObject() {
			return models.StreamEvent{}, fmt.Errorf("final event content is not an object")
		}
		event.Response = chatResponseFromResult(content)
	default:
		return models.StreamEvent{}, fmt.Errorf("unknown event type %q", typ.String())
	}

	return event, nil
}
