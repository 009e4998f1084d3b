package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/diogo/querychat/internal/api"
	"github.com/diogo/querychat/internal/models"
)

// TranscriptOptions controls line-mode output
type TranscriptOptions struct {
	Markdown Options
	// Raw prints bot text verbatim, without markdown or colour
	Raw bool
	// SavedImages maps image messages to the file they were written to
	SavedImages map[models.MessageID]string
}

// FormatMessage renders one message for line-mode output
func FormatMessage(m models.Message, opts TranscriptOptions) string {
	if opts.Raw {
		return formatRaw(m, opts)
	}

	p := PaletteFor(opts.Markdown.Style)
	switch {
	case m.Sender == models.SenderUser:
		label := lipgloss.NewStyle().Foreground(p.Primary).Bold(true).Render("you")
		return label + " " + m.Content
	case m.IsImage():
		return lipgloss.NewStyle().Foreground(p.Accent).Render(ImageLine(m, opts.SavedImages[m.ID]))
	case m.IsPlaceholder():
		return lipgloss.NewStyle().Foreground(p.Warning).Italic(true).Render(m.Content)
	case m.IsError():
		return lipgloss.NewStyle().Foreground(p.Error).Render(m.Content)
	default:
		return MarkdownOrPlain(m.Content, opts.Markdown)
	}
}

func formatRaw(m models.Message, opts TranscriptOptions) string {
	switch {
	case m.Sender == models.SenderUser:
		return "> " + m.Content
	case m.IsImage():
		return ImageLine(m, opts.SavedImages[m.ID])
	default:
		return m.Content
	}
}

// ImageLine describes an image message in one line of text
func ImageLine(m models.Message, savedPath string) string {
	var b strings.Builder

	info, _, err := api.InspectImage(m.Content)
	if err != nil {
		fmt.Fprintf(&b, "[image: unrecognised data, %s base64]", humanize.Bytes(uint64(len(m.Content))))
	} else if info.Width > 0 {
		fmt.Fprintf(&b, "[image: %s %dx%d, %s]", info.MIME, info.Width, info.Height, humanize.Bytes(uint64(info.Size)))
	} else {
		fmt.Fprintf(&b, "[image: %s, %s]", info.MIME, humanize.Bytes(uint64(info.Size)))
	}

	if savedPath != "" {
		b.WriteString(" saved to ")
		b.WriteString(savedPath)
	}
	return b.String()
}

// WriteTranscript writes messages in order, separated by blank lines
func WriteTranscript(w io.Writer, msgs []models.Message, opts TranscriptOptions) error {
	for i, m := range msgs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, FormatMessage(m, opts)+"\n"); err != nil {
			return err
		}
	}
	return nil
}
