package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/diogo/querychat/internal/models"
)

// FailPrefix makes EchoResponder fail on purpose
const FailPrefix = "/fail"

// Responder answers queries. progress, when non-nil, receives status updates
// before the final answer.
type Responder interface {
	Respond(ctx context.Context, query string, progress func(string)) (*models.ChatResponse, error)
}

// ResponderFunc adapts a function to Responder
type ResponderFunc func(ctx context.Context, query string, progress func(string)) (*models.ChatResponse, error)

func (f ResponderFunc) Respond(ctx context.Context, query string, progress func(string)) (*models.ChatResponse, error) {
	return f(ctx, query, progress)
}

// EchoResponder is a canned backend for demos and tests. It echoes the query
// and draws a bar chart when the query asks for one.
type EchoResponder struct {
	// Delay is waited before answering
	Delay time.Duration
}

// Respond implements Responder
func (e EchoResponder) Respond(ctx context.Context, query string, progress func(string)) (*models.ChatResponse, error) {
	report := func(msg string) {
		if progress != nil {
			progress(msg)
		}
	}

	report("Analyzing query")
	if e.Delay > 0 {
		t := time.NewTimer(e.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.HasPrefix(strings.TrimSpace(query), FailPrefix) {
		return nil, errors.New("simulated backend failure")
	}

	words := strings.Fields(query)
	resp := &models.ChatResponse{
		Summary: fmt.Sprintf("**You asked:** %s\n\nThe query has %s and %s.",
			query,
			plural(len(words), "word"),
			plural(len([]rune(query)), "character")),
	}

	lower := strings.ToLower(query)
	if strings.Contains(lower, "chart") || strings.Contains(lower, "plot") {
		report("Rendering chart")
		lengths := make([]int, 0, len(words))
		for _, w := range words {
			lengths = append(lengths, len([]rune(w)))
		}
		img, err := BarChartPNG(lengths)
		if err != nil {
			return nil, fmt.Errorf("render chart: %w", err)
		}
		resp.Visualization = &models.Visualization{
			Image:       base64.StdEncoding.EncodeToString(img),
			Description: fmt.Sprintf("Bar chart of word lengths (%s).", humanize.Bytes(uint64(len(img)))),
		}
	}

	return resp, nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

const (
	chartWidth  = 320
	chartHeight = 160
	chartMargin = 8
)

var (
	chartBackground = color.RGBA{R: 0x1a, G: 0x1b, B: 0x26, A: 0xff}
	chartBar        = color.RGBA{R: 0x7a, G: 0xa2, B: 0xf7, A: 0xff}
)

// BarChartPNG draws values as a PNG bar chart scaled to the largest value
func BarChartPNG(values []int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: chartBackground}, image.Point{}, draw.Src)

	maxVal := 0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}

	if len(values) > 0 && maxVal > 0 {
		plotW := chartWidth - 2*chartMargin
		plotH := chartHeight - 2*chartMargin
		slot := max(plotW/len(values), 1)
		gap := slot / 5

		for i, v := range values {
			if v <= 0 {
				continue
			}
			x0 := chartMargin + i*slot + gap
			x1 := chartMargin + (i+1)*slot - gap
			if x1 <= x0 {
				x1 = x0 + 1
			}
			h := v * plotH / maxVal
			bar := image.Rect(x0, chartHeight-chartMargin-h, x1, chartHeight-chartMargin)
			draw.Draw(img, bar, &image.Uniform{C: chartBar}, image.Point{}, draw.Src)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
