// Package models contains data types and constants for the querychat backend contract.
package models

// Endpoint paths served by the chat backend
const (
	EndpointChat    = "/chat"
	EndpointAnalyze = "/analyze"
	EndpointStream  = "/stream"
	EndpointHealth  = "/health"
)

// DefaultBaseURL is where the backend listens when nothing else is configured
const DefaultBaseURL = "http://localhost:5000"

// Fixed texts shown by the chat client
const (
	TextGreeting     = "Hello! How can I assist you today?"
	TextProcessing   = "Processing your query..."
	TextNoSummary    = "No summary available."
	TextGenericError = "Sorry, there was an error processing your request."
	BackendErrPrefix = "Error: "
)

// ImageMIME is the media type images are assumed to have on the wire
const ImageMIME = "image/png"

// Endpoint names accepted by the CLI and config
const (
	EndpointNameChat    = "chat"
	EndpointNameAnalyze = "analyze"
)

// EndpointPath maps an endpoint name to its path. Unknown names fall back to /chat.
func EndpointPath(name string) string {
	switch name {
	case EndpointNameAnalyze:
		return EndpointAnalyze
	default:
		return EndpointChat
	}
}

// DefaultHeaders returns the headers sent with every JSON request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   "querychat/0.1",
	}
}
