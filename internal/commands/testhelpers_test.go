package commands

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/diogo/querychat/internal/api"
	"github.com/diogo/querychat/internal/chat"
	"github.com/diogo/querychat/internal/logging"
	"github.com/diogo/querychat/internal/tui"
)

// fakeTUI records the chat session it was asked to run
type fakeTUI struct {
	widget *chat.Widget
	opts   tui.Options
	err    error
}

func (f *fakeTUI) RunChat(ctx context.Context, widget *chat.Widget, opts tui.Options) error {
	f.widget = widget
	f.opts = opts
	return f.err
}

// fakeLineReader replays canned input lines, then reports EOF
type fakeLineReader struct {
	mu          sync.Mutex
	lines       []string
	prompts     int
	history     []string
	historyPath string
	closed      bool
}

func (f *fakeLineReader) Prompt(prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts++
	if len(f.lines) == 0 {
		return "", io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func (f *fakeLineReader) AppendHistory(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, line)
}

func (f *fakeLineReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type testEnv struct {
	deps      *Dependencies
	client    *api.MockClient
	tui       *fakeTUI
	reader    *fakeLineReader
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	clipboard []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		client: &api.MockClient{BaseURLVal: "http://stub:5000"},
		tui:    &fakeTUI{},
		reader: &fakeLineReader{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	env.deps = &Dependencies{
		Client: env.client,
		TUI:    env.tui,
		NewLineReader: func(historyPath string) (LineReader, error) {
			env.reader.historyPath = historyPath
			return env.reader, nil
		},
		Clipboard: func(text string) error {
			env.clipboard = append(env.clipboard, text)
			return nil
		},
		Stdin:      &bytes.Buffer{},
		Stdout:     env.stdout,
		Stderr:     env.stderr,
		Logger:     logging.Nop(),
		ConfigPath: filepath.Join(t.TempDir(), "config.json"),
	}
	return env
}

func (e *testEnv) run(args ...string) error {
	cmd := NewRootCmd(e.deps)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}
