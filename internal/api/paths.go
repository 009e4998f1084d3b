// Package api provides the HTTP client for the querychat backend.
package api

// GJSON paths for extracting values from backend responses.
const (
	PathError         = "error"
	PathSummary       = "summary"
	PathVisualization = "visualization"

	// Relative to the visualization object
	PathVizImage       = "image"
	PathVizDescription = "description"

	// /stream line fields
	PathStreamType    = "type"
	PathStreamContent = "content"
)
