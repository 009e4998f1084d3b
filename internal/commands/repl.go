package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/diogo/querychat/internal/chat"
	"github.com/diogo/querychat/internal/config"
	"github.com/diogo/querychat/internal/models"
	"github.com/diogo/querychat/internal/render"
)

const replPrompt = "querychat> "

// NewReplCmd creates the line-mode chat command
func NewReplCmd(deps *Dependencies, global *globalFlags) *cobra.Command {
	deps = deps.withDefaults()
	if global == nil {
		global = &globalFlags{}
	}

	var raw bool
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start a line-mode chat session",
		Long: `Start a line-mode chat session. Input history is kept in
~/.querychat/repl_history.

Type 'exit' or 'quit', press Ctrl+D or Ctrl+C to end the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd, deps, global, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print plain text without colours or markdown")

	return cmd
}

func runRepl(cmd *cobra.Command, deps *Dependencies, global *globalFlags, raw bool) error {
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

	historyPath, err := replHistoryPath(deps)
	if err != nil {
		return err
	}

	reader, err := deps.NewLineReader(historyPath)
	if err != nil {
		return fmt.Errorf("failed to start line editor: %w", err)
	}
	defer func() { _ = reader.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	raw = raw || !isTerminal(deps.Stdout)
	opts := render.TranscriptOptions{
		Markdown: render.FromConfig(cfg.Markdown).WithWidth(contentWidth(deps.Stdout)),
		Raw:      raw,
	}

	widget := chat.New(client, chat.WithLogger(logger))
	if err := render.WriteTranscript(deps.Stdout, widget.Transcript().Messages(), opts); err != nil {
		return err
	}
	if !raw {
		fmt.Fprintln(deps.Stdout, lipgloss.NewStyle().Foreground(colorTextMute).Render(
			fmt.Sprintf("Connected to %s. Type 'exit' to quit.", client.BaseURL())))
	}

	printer := &replPrinter{out: deps.Stdout, opts: opts}
	widget.Transcript().Subscribe(printer.onEvent)

	for {
		line, err := reader.Prompt(replPrompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(deps.Stdout)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if isExitCommand(text) {
			return nil
		}
		reader.AppendHistory(text)

		if err := replExchange(ctx, deps, widget, printer, text); err != nil {
			return err
		}
	}
}

// replExchange submits one line; printer writes the answer as it lands
func replExchange(ctx context.Context, deps *Dependencies, widget *chat.Widget, printer *replPrinter, text string) error {
	var prog progress = noProgress{}
	if !printer.opts.Raw {
		prog = startProgress(deps.Stderr, models.TextProcessing)
	}
	printer.begin(prog)

	sub := widget.Submit(ctx, text)
	if err := sub.Wait(ctx); err != nil {
		_ = printer.end()
		return err
	}
	return printer.end()
}

// replPrinter writes bot messages to out as the transcript receives them.
// Messages of one answer are separated by a blank line.
type replPrinter struct {
	out  io.Writer
	opts render.TranscriptOptions

	mu      sync.Mutex
	prog    progress
	printed int
	err     error
}

// begin starts a new answer block; prog is stopped before its first line
func (p *replPrinter) begin(prog progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prog = prog
	p.printed = 0
	p.err = nil
}

// end stops any progress still running and returns the first write error
func (p *replPrinter) end() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prog != nil {
		p.prog.fail()
		p.prog = nil
	}
	return p.err
}

func (p *replPrinter) onEvent(ev chat.Event) {
	m := ev.Message
	if ev.Kind != chat.EventAppend || m.Sender != models.SenderBot || m.IsPlaceholder() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prog != nil {
		if m.Status == models.StatusFailure {
			p.prog.fail()
		} else {
			p.prog.success("Done")
		}
		p.prog = nil
	}

	out := render.FormatMessage(m, p.opts) + "\n"
	if p.printed > 0 {
		out = "\n" + out
	}
	if _, err := io.WriteString(p.out, out); err != nil && p.err == nil {
		p.err = err
	}
	p.printed++
}

func isExitCommand(text string) bool {
	switch strings.ToLower(text) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}

// replHistoryPath keeps the history file next to the config file
func replHistoryPath(deps *Dependencies) (string, error) {
	if deps.ConfigPath != "" {
		return filepath.Join(filepath.Dir(deps.ConfigPath), "repl_history"), nil
	}
	dir, err := config.EnsureConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "repl_history"), nil
}
