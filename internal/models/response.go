package models

// Visualization is an image/description pair accompanying a response
type Visualization struct {
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

// HasImage reports whether the visualization carries image data
func (v *Visualization) HasImage() bool {
	return v != nil && v.Image != ""
}

// ChatRequest is the body sent to the chat endpoints
type ChatRequest struct {
	Query string `json:"query"`
}

// ChatResponse is the structured reply of the backend.
// Empty strings mean the field was absent.
type ChatResponse struct {
	Summary       string         `json:"summary,omitempty"`
	Visualization *Visualization `json:"visualization,omitempty"`
	Error         string         `json:"error,omitempty"`

	// StatusCode is the HTTP status the response arrived with. Not serialized.
	StatusCode int `json:"-"`
}

// HasError reports whether the backend reported a failure
func (r *ChatResponse) HasError() bool {
	return r != nil && r.Error != ""
}

// StreamEventType is the type tag of a /stream line
type StreamEventType string

const (
	StreamUpdate StreamEventType = "update"
	StreamFinal  StreamEventType = "final"
	StreamError  StreamEventType = "error"
)

// StreamEvent is one NDJSON line of the /stream endpoint.
// Final events carry Response, update and error events carry Text.
type StreamEvent struct {
	Type     StreamEventType
	Text     string
	Response *ChatResponse
}
