package api

import (
	"context"
	"errors"
	"strings"
	"testing"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
)

func ndjson(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestClient_Stream(t *testing.T) {
	body := ndjson(
		`{"type":"update","content":"Loading data..."}`,
		``,
		`{"type":"update","content":"Running analysis..."}`,
		`{"type":"final","content":{"summary":"Done","visualization":{"image":"aGk="}}}`,
	)
	doer := &recordingDoer{status: 200, body: body}
	client := newTestClient(t, doer)

	var updates []string
	resp, err := client.Stream(context.Background(), "q", func(ev models.StreamEvent) error {
		if ev.Type == models.StreamUpdate {
			updates = append(updates, ev.Text)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if doer.requests[0].URL.Path != models.EndpointStream {
		t.Errorf("path = %q", doer.requests[0].URL.Path)
	}
	if len(updates) != 2 || updates[1] != "Running analysis..." {
		t.Errorf("updates = %v", updates)
	}
	if resp.Summary != "Done" || !resp.Visualization.HasImage() {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClient_StreamErrorEvent(t *testing.T) {
	body := ndjson(
		`{"type":"update","content":"Loading data..."}`,
		`{"type":"error","content":"table not found"}`,
		`{"type":"final","content":{"summary":"never read"}}`,
	)
	client := newTestClient(t, &recordingDoer{status: 200, body: body})

	resp, err := client.Stream(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if resp.Error != "table not found" {
		t.Errorf("Error = %q", resp.Error)
	}
	if resp.Summary != "" {
		t.Errorf("Summary = %q, reading must stop at the error event", resp.Summary)
	}
}

func TestClient_StreamRejected(t *testing.T) {
	client := newTestClient(t, &recordingDoer{status: 400, body: `{"error":"No query provided"}`})

	resp, err := client.Stream(context.Background(), "q", func(models.StreamEvent) error {
		t.Error("callback must not run for a plain error object")
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if resp.Error != "No query provided" || resp.StatusCode != 400 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClient_StreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"no final event", 200, ndjson(`{"type":"update","content":"x"}`), apierrors.IsParseError},
		{"garbage line", 200, ndjson(`not json`), apierrors.IsParseError},
		{"unknown type", 200, ndjson(`{"type":"progress","content":1}`), apierrors.IsParseError},
		{"final without object", 200, ndjson(`{"type":"final","content":"text"}`), apierrors.IsParseError},
		{"html error page", 503, "<html>down</html>", func(err error) bool { return apierrors.GetHTTPStatus(err) == 503 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &recordingDoer{status: tt.status, body: tt.body})
			_, err := client.Stream(context.Background(), "q", nil)
			if err == nil || !tt.check(err) {
				t.Errorf("Stream() error = %v", err)
			}
		})
	}
}

func TestClient_StreamCallbackStops(t *testing.T) {
	body := ndjson(
		`{"type":"update","content":"one"}`,
		`{"type":"update","content":"two"}`,
		`{"type":"final","content":{"summary":"S"}}`,
	)
	client := newTestClient(t, &recordingDoer{status: 200, body: body})
	stop := errors.New("stop")

	calls := 0
	_, err := client.Stream(context.Background(), "q", func(models.StreamEvent) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Stream() error = %v, want callback error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
