package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/diogo/querychat/internal/api"
	"github.com/diogo/querychat/internal/chat"
	"github.com/diogo/querychat/internal/config"
	"github.com/diogo/querychat/internal/models"
	"github.com/diogo/querychat/internal/render"
	"github.com/diogo/querychat/internal/tui"
)

// runQuery executes a single query and prints what it added to the transcript
func runQuery(cmd *cobra.Command, deps *Dependencies, global *globalFlags, qf *queryFlags, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}

	cfg, err := loadSettings(cmd, deps, global)
	if err != nil {
		return err
	}

	logger := newLogger(deps, cfg, cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	client, closeClient, err := newClient(deps, cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	// Piped stdout gets plain text; progress on stderr is only silenced by --raw
	raw := qf.raw || !isTerminal(deps.Stdout)
	quiet := qf.raw
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	widget := chat.New(client, chat.WithLogger(logger))
	greeting, _ := widget.Transcript().Last()

	var failure error
	if qf.stream {
		failure = streamQuery(ctx, deps, widget, client, query, quiet)
	} else {
		failure = submitQuery(ctx, deps, widget, query, quiet)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// The greeting is the client's, not part of the answer
	msgs := widget.Transcript().Since(greeting.ID)
	answer := botMessages(msgs)
	if failure == nil && isBackendError(answer) {
		failure = errQueryFailed
	}

	saved := saveImages(deps, cfg, qf.saveImages, answer, logger)

	if qf.copy || cfg.CopyToClipboard {
		copyAnswer(deps, answer, quiet)
	}

	if qf.output != "" {
		var buf bytes.Buffer
		if err := render.WriteTranscript(&buf, answer, render.TranscriptOptions{Raw: true, SavedImages: saved}); err != nil {
			return err
		}
		if err := os.WriteFile(qf.output, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			fmt.Fprintln(deps.Stderr, lipgloss.NewStyle().Foreground(colorSuccess).Render(
				fmt.Sprintf("✓ Response saved to %s", qf.output)))
		}
	} else {
		printed := answer
		if !raw {
			printed = msgs
		}
		opts := render.TranscriptOptions{
			Markdown:    render.FromConfig(cfg.Markdown).WithWidth(contentWidth(deps.Stdout)),
			Raw:         raw,
			SavedImages: saved,
		}
		if err := render.WriteTranscript(deps.Stdout, printed, opts); err != nil {
			return err
		}
	}

	if failure != nil {
		if cfg.Verbose && failure != errQueryFailed {
			fmt.Fprintln(deps.Stderr, tui.FormatError(failure))
		}
		return errQueryFailed
	}
	return nil
}

// submitQuery runs one Submit and waits for it to render
func submitQuery(ctx context.Context, deps *Dependencies, widget *chat.Widget, query string, quiet bool) error {
	var prog progress = noProgress{}
	if !quiet {
		prog = startProgress(deps.Stderr, models.TextProcessing)
	}

	sub := widget.Submit(ctx, query)
	if err := sub.Wait(ctx); err != nil {
		prog.fail()
		return err
	}
	if err := sub.Err(); err != nil {
		prog.fail()
		return err
	}
	prog.success("Done")
	return nil
}

// streamQuery is submitQuery over /stream, showing update events as progress
func streamQuery(ctx context.Context, deps *Dependencies, widget *chat.Widget, client api.ClientInterface, query string, quiet bool) error {
	p, ok := widget.Begin(query)
	if !ok {
		return nil
	}

	var prog progress = noProgress{}
	if !quiet {
		prog = startProgress(deps.Stderr, models.TextProcessing)
	}
	onEvent := func(ev models.StreamEvent) error {
		if ev.Type != models.StreamUpdate {
			return nil
		}
		switch {
		case quiet:
		case isTerminal(deps.Stderr):
			prog.update(ev.Text)
		default:
			fmt.Fprintf(deps.Stderr, "… %s\n", ev.Text)
		}
		return nil
	}

	resp, err := client.Stream(ctx, p.Query, onEvent)
	widget.Complete(p.ID, resp, err)
	if err != nil {
		prog.fail()
		return err
	}
	prog.success("Done")
	return nil
}

func botMessages(msgs []models.Message) []models.Message {
	var out []models.Message
	for _, m := range msgs {
		if m.Sender == models.SenderBot {
			out = append(out, m)
		}
	}
	return out
}

func isBackendError(answer []models.Message) bool {
	return len(answer) == 1 && answer[0].Status == models.StatusBackendError
}

// saveImages writes image messages to dir, or to the configured download dir
// when save_images is on. Failures are warnings.
func saveImages(deps *Dependencies, cfg config.Config, dir string, msgs []models.Message, logger *zap.Logger) map[models.MessageID]string {
	saved := make(map[models.MessageID]string)

	if dir == "" && cfg.SaveImages {
		d, err := config.GetDownloadDir(cfg)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "Warning: %v\n", err)
			return saved
		}
		dir = d
	}
	if dir == "" {
		return saved
	}

	for _, m := range msgs {
		if !m.IsImage() {
			continue
		}
		path, err := api.SaveImage(m, api.ImageSaveOptions{Directory: dir, Prefix: "querychat"})
		if err != nil {
			logger.Warn("failed to save image", zap.Uint64("message_id", uint64(m.ID)), zap.Error(err))
			fmt.Fprintf(deps.Stderr, "Warning: failed to save image: %v\n", err)
			continue
		}
		saved[m.ID] = path
	}
	return saved
}

// copyAnswer puts the text messages of the answer on the clipboard
func copyAnswer(deps *Dependencies, answer []models.Message, quiet bool) {
	var parts []string
	for _, m := range answer {
		if !m.IsImage() {
			parts = append(parts, m.Content)
		}
	}

	if err := deps.Clipboard(strings.Join(parts, "\n\n")); err != nil {
		fmt.Fprintln(deps.Stderr, lipgloss.NewStyle().Foreground(colorError).Render(
			fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
		return
	}
	if !quiet {
		fmt.Fprintln(deps.Stderr, lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ Copied to clipboard"))
	}
}

// isTerminal reports whether w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// contentWidth is the markdown width for w: the terminal width clamped to 40..120
func contentWidth(w io.Writer) int {
	width := 80
	if f, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			width = tw
		}
	}
	return min(max(width-4, 40), 120)
}
