package commands

import (
	"errors"
	"testing"

	"github.com/diogo/querychat/internal/config"
	"github.com/diogo/querychat/internal/models"
)

func TestChatCmd_Properties(t *testing.T) {
	cmd := NewChatCmd(nil, nil)
	if cmd.Use != "chat" {
		t.Errorf("Expected use 'chat', got %s", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("descriptions should not be empty")
	}
	if err := cmd.Args(cmd, []string{"extra"}); err == nil {
		t.Error("chat should reject arguments")
	}
}

func TestChatCmd_RunsTUI(t *testing.T) {
	env := newTestEnv(t)

	if err := env.run("chat"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if env.tui.widget == nil {
		t.Fatal("TUI was not started")
	}
	msgs := env.tui.widget.Transcript().Messages()
	if len(msgs) != 1 || msgs[0].Content != models.TextGreeting {
		t.Errorf("a fresh widget should hold only the greeting, got %v", msgs)
	}
	if env.tui.opts.Title != "http://stub:5000" {
		t.Errorf("Title = %q", env.tui.opts.Title)
	}
	if env.tui.opts.SaveDir != "" {
		t.Error("images are not saved unless save_images is on")
	}
	if env.tui.opts.Logger == nil {
		t.Error("logger should be passed to the TUI")
	}
}

func TestChatCmd_SaveImagesFromConfig(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	if err := setConfigValue(env.deps, "save_images", "true"); err != nil {
		t.Fatal(err)
	}
	if err := setConfigValue(env.deps, "download_dir", dir); err != nil {
		t.Fatal(err)
	}

	if err := env.run("chat"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if env.tui.opts.SaveDir != dir {
		t.Errorf("SaveDir = %q, want %q", env.tui.opts.SaveDir, dir)
	}
}

func TestChatCmd_TUIError(t *testing.T) {
	env := newTestEnv(t)
	env.tui.err = errors.New("no tty")

	if err := env.run("chat"); err == nil {
		t.Fatal("expected TUI error to propagate")
	}
}

func TestTUILogPath(t *testing.T) {
	def := config.DefaultConfig().LogFile
	tests := map[string]string{
		"stderr":          def,
		"stdout":          def,
		"":                "",
		"/var/log/qc.log": "/var/log/qc.log",
		"stderr.log":      "stderr.log",
	}
	for in, want := range tests {
		if got := tuiLogPath(in); got != want {
			t.Errorf("tuiLogPath(%q) = %q, want %q", in, got, want)
		}
	}
}
