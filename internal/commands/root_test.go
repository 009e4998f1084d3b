package commands

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestNewRootCmd_Properties(t *testing.T) {
	cmd := NewRootCmd(nil)

	if cmd.Use != "querychat [query]" {
		t.Errorf("Expected use 'querychat [query]', got %s", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("descriptions should not be empty")
	}
	if !cmd.SilenceUsage {
		t.Error("usage should be silenced on errors")
	}

	for _, name := range []string{"chat", "repl", "config", "serve"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	for _, flag := range []string{"file", "output", "stream", "raw", "save-images", "copy", "version"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("flag --%s not registered", flag)
		}
	}
	for _, flag := range []string{"base-url", "endpoint", "timeout", "verbose"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s not registered", flag)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	for _, arg := range []string{"-v", "--version"} {
		t.Run(arg, func(t *testing.T) {
			env := newTestEnv(t)
			if err := env.run(arg); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if !strings.HasPrefix(env.stdout.String(), "querychat "+Version) {
				t.Errorf("unexpected version output: %q", env.stdout.String())
			}
			if len(env.client.Queries) != 0 {
				t.Error("version should not send a query")
			}
		})
	}
}

func TestRootCommand_NoInputShowsHelp(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "Usage:") {
		t.Errorf("expected help output, got %q", env.stdout.String())
	}
}

func TestRootCommand_TooManyArgs(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run("one", "two"); err == nil {
		t.Error("expected error for two positional arguments")
	}
}

func TestReadQuery(t *testing.T) {
	file := filepath.Join(t.TempDir(), "q.txt")
	if err := os.WriteFile(file, []byte("from file"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		file   string
		args   []string
		stdin  string
		want   string
		wantOK bool
	}{
		{"file wins", file, []string{"arg"}, "stdin", "from file", true},
		{"arg before stdin", "", []string{"arg"}, "stdin", "arg", true},
		{"stdin", "", nil, "piped", "piped", true},
		{"nothing", "", nil, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := readQuery(tt.file, tt.args, strings.NewReader(tt.stdin))
			if err != nil {
				t.Fatalf("readQuery() error = %v", err)
			}
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("readQuery() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if _, _, err := readQuery(filepath.Join(t.TempDir(), "missing"), nil, nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadSettings_FlagsOverrideConfig(t *testing.T) {
	env := newTestEnv(t)

	global := &globalFlags{}
	cmd := &cobra.Command{Use: "test"}
	global.addFlags(cmd)
	if err := cmd.ParseFlags([]string{"--base-url", "http://flag:9", "--endpoint", "analyze", "--timeout", "5"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadSettings(cmd, env.deps, global)
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}
	if cfg.BaseURL != "http://flag:9" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Endpoint != "analyze" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.TimeoutSeconds != 5 {
		t.Errorf("TimeoutSeconds = %d", cfg.TimeoutSeconds)
	}
}

func TestLoadSettings_InvalidEndpoint(t *testing.T) {
	env := newTestEnv(t)
	err := env.run("--endpoint", "summarize", "hello")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected invalid configuration error, got %v", err)
	}
	if errors.Is(err, errQueryFailed) {
		t.Error("configuration errors should be reported, not swallowed")
	}
}
