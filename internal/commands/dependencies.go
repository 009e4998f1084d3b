package commands

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/diogo/querychat/internal/api"
	"github.com/diogo/querychat/internal/chat"
	"github.com/diogo/querychat/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(ctx context.Context, widget *chat.Widget, opts tui.Options) error
}

// LineReader reads REPL input lines
type LineReader interface {
	// Prompt returns io.EOF when the user ends the session
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
// Nil fields fall back to the real implementations.
type Dependencies struct {
	// Client replaces the HTTP client built from config
	Client api.ClientInterface

	// TUI is the terminal user interface.
	TUI TUIInterface

	// NewLineReader opens the REPL line editor with the given history file
	NewLineReader func(historyPath string) (LineReader, error)

	// Clipboard receives text for --copy
	Clipboard func(text string) error

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Logger replaces the logger built from config
	Logger *zap.Logger

	// ConfigPath overrides ~/.querychat/config.json
	ConfigPath string
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(ctx context.Context, widget *chat.Widget, opts tui.Options) error {
	return tui.RunChat(ctx, widget, opts)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		TUI:           &DefaultTUI{},
		NewLineReader: newLinerReader,
		Clipboard:     clipboard.WriteAll,
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
	}
}

// withDefaults fills nil fields so commands never check for them
func (d *Dependencies) withDefaults() *Dependencies {
	out := NewDependencies()
	if d == nil {
		return out
	}

	out.Client = d.Client
	out.Logger = d.Logger
	out.ConfigPath = d.ConfigPath
	if d.TUI != nil {
		out.TUI = d.TUI
	}
	if d.NewLineReader != nil {
		out.NewLineReader = d.NewLineReader
	}
	if d.Clipboard != nil {
		out.Clipboard = d.Clipboard
	}
	if d.Stdin != nil {
		out.Stdin = d.Stdin
	}
	if d.Stdout != nil {
		out.Stdout = d.Stdout
	}
	if d.Stderr != nil {
		out.Stderr = d.Stderr
	}
	return out
}

// linerReader is the liner-backed LineReader. History is written back on Close.
type linerReader struct {
	state       *liner.State
	historyPath string
}

func newLinerReader(historyPath string) (LineReader, error) {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return &linerReader{state: state, historyPath: historyPath}, nil
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return line, err
}

func (r *linerReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

func (r *linerReader) Close() error {
	if r.historyPath != "" {
		if f, err := os.OpenFile(r.historyPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600); err == nil {
			_, _ = r.state.WriteHistory(f)
			_ = f.Close()
		}
	}
	return r.state.Close()
}
